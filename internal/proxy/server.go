package proxy

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"adminmedia/render"
)

const (
	defaultWaitTimeout = 5 * time.Second
	// maxRewriteBytes caps the HTML bodies parsed for rewriting; larger
	// pages are passed through untouched.
	maxRewriteBytes = 8 << 20

	internalPrefix = "/_adminmedia"
)

var errNoUpstream = errors.New("proxy: upstream URL is required")

// Config describes server wiring and runtime behaviour.
type Config struct {
	Upstream *url.URL
	Render   render.Config
	// RowSelector matches the per-row checkboxes the select-all toggle
	// drives on the served document.
	RowSelector string
	// WaitTimeout bounds how long a response waits for pending workflows.
	WaitTimeout time.Duration
	Logger      *slog.Logger
	// Registry receives the proxy metrics. Nil uses a private registry.
	Registry  *prometheus.Registry
	Transport http.RoundTripper
}

// Server fronts the admin upstream and rewrites its list pages.
type Server struct {
	cfg       Config
	router    chi.Router
	proxy     *httputil.ReverseProxy
	logger    *slog.Logger
	metrics   *metrics
	transport http.RoundTripper
}

// New wires a new proxy server with the provided configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Upstream == nil || !cfg.Upstream.IsAbs() {
		return nil, errNoUpstream
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = defaultWaitTimeout
	}
	if cfg.RowSelector == "" {
		cfg.RowSelector = render.DefaultRowSelector
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	if cfg.Render.Table == nil {
		cfg.Render = render.DefaultConfig()
	}
	if cfg.Render.Logger == nil {
		cfg.Render.Logger = cfg.Logger
	}

	s := &Server{
		cfg:       cfg,
		logger:    cfg.Logger,
		metrics:   newMetrics(cfg.Registry),
		transport: cfg.Transport,
	}
	s.proxy = &httputil.ReverseProxy{
		Rewrite:        s.rewriteRequest,
		ModifyResponse: s.modifyResponse,
		ErrorHandler:   s.handleProxyError,
		Transport:      cfg.Transport,
	}
	s.registerRoutes()
	return s, nil
}

// Handler exposes the HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler { return s }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(withLogging(s.logger))
	r.Use(s.metrics.middleware)

	r.Get("/healthz", s.handlePing)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.cfg.Registry, promhttp.HandlerOpts{}))
	r.Route(internalPrefix, func(r chi.Router) {
		r.Get("/", s.handleIndex)
		r.Get("/inspect", s.handleInspect)
	})
	r.Handle("/*", http.HandlerFunc(s.handleProxy))
	s.router = r
}
