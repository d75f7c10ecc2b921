package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"adminmedia/internal/browser"
	"adminmedia/internal/config"
	"adminmedia/internal/logger"
)

func main() {
	_ = godotenv.Load()

	configFlag := flag.String("config", os.Getenv("ADMINMEDIA_CONFIG"), "path to the YAML config file")
	outFlag := flag.String("out", "", "write the transformed page snapshot to this file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <admin page url>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	target := flag.Arg(0)

	cfg, err := config.Load(*configFlag)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := logger.Init(os.Stderr, logger.ParseLevel(cfg.LogLevel))
	rc, err := cfg.Render(log)
	if err != nil {
		log.Error("build render config", "error", err)
		os.Exit(1)
	}

	hdr := http.Header{}
	if cfg.Browser.UserAgent != "" {
		hdr.Set("User-Agent", cfg.Browser.UserAgent)
	}
	drv := browser.New(browser.Options{
		Headless: cfg.Browser.Headless,
		Timeout:  cfg.Browser.Timeout,
		Header:   hdr,
		Cookies:  browser.SessionCookie(cfg.Browser.CookieName, cfg.Browser.SessionCookie),
		Logger:   log,
	})
	defer drv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	page, err := drv.Run(ctx, target, rc, cfg.Workflow.WaitTimeout)
	if page == nil {
		log.Error("drive page", "url", target, "error", err)
		os.Exit(1)
	}
	if *outFlag != "" {
		if werr := os.WriteFile(*outFlag, []byte(page.HTML), 0o644); werr != nil {
			log.Error("write snapshot", "path", *outFlag, "error", werr)
			os.Exit(1)
		}
	}
	fmt.Printf("%s\tstatus=%d\tkey=%q\tkind=%s\tapplied=%v\tworkflows=%d\n",
		page.URL, page.Status, page.Result.Key, page.Result.Kind, page.Result.Applied, len(page.Result.Workflows))
	if err != nil {
		log.Error("page actions", "url", page.URL, "error", err)
		os.Exit(1)
	}
}
