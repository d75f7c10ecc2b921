package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"adminmedia/internal/config"
	"adminmedia/internal/logger"
	"adminmedia/internal/proxy"
)

func main() {
	_ = godotenv.Load()

	configFlag := flag.String("config", os.Getenv("ADMINMEDIA_CONFIG"), "path to the YAML config file")
	addrFlag := flag.String("addr", "", "listen address, e.g. :81 or 0.0.0.0:8081")
	upstreamFlag := flag.String("upstream", "", "admin upstream base URL")
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	if *addrFlag != "" {
		cfg.Listen = *addrFlag
	}
	if *upstreamFlag != "" {
		cfg.Upstream = *upstreamFlag
	}

	log := logger.Init(os.Stdout, logger.ParseLevel(cfg.LogLevel))

	rc, err := cfg.Render(log)
	if err != nil {
		log.Error("build render config", "error", err)
		os.Exit(1)
	}
	upstream, err := url.Parse(cfg.Upstream)
	if err != nil {
		log.Error("parse upstream", "upstream", cfg.Upstream, "error", err)
		os.Exit(1)
	}
	handler, err := proxy.New(proxy.Config{
		Upstream:    upstream,
		Render:      rc,
		RowSelector: cfg.Workflow.RowSelector,
		WaitTimeout: cfg.Workflow.WaitTimeout,
		Logger:      log,
	})
	if err != nil {
		log.Error("build proxy", "upstream", cfg.Upstream, "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: handler,
		// Conservative timeouts to avoid slowloris and leaked connections blocking the server
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelWarn),
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		log.Error("listen", "addr", cfg.Listen, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown", "error", err)
		}
	}()

	log.Info("listening", "addr", cfg.Listen, "upstream", upstream.String(), "strategy", cfg.Strategy)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("serve", "error", err)
		os.Exit(1)
	}
}
