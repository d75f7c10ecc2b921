package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"adminmedia/render"
)

const (
	defaultListen      = ":8081"
	defaultWaitTimeout = 5 * time.Second
)

// PageRoute maps a page key to a page kind. A non-empty Actions list
// replaces the kind's actions for every key routed to it.
type PageRoute struct {
	Key     string   `yaml:"key"`
	Kind    string   `yaml:"kind"`
	Actions []string `yaml:"actions,omitempty"`
}

// Workflow names the host controls of the export flow.
type Workflow struct {
	SelectName  string        `yaml:"select_name"`
	ExportValue string        `yaml:"export_value"`
	ToggleID    string        `yaml:"toggle_id"`
	RowSelector string        `yaml:"row_selector"`
	Delay       time.Duration `yaml:"delay"`
	// WaitTimeout bounds how long a rewrite waits for a pending workflow.
	WaitTimeout time.Duration `yaml:"wait_timeout"`
}

// Stylesheet controls the CSS injected next to rendered media.
type Stylesheet struct {
	Disabled bool   `yaml:"disabled"`
	Path     string `yaml:"path"`
}

// Browser configures the headless Chrome driver.
type Browser struct {
	Headless      bool          `yaml:"headless"`
	Timeout       time.Duration `yaml:"timeout"`
	UserAgent     string        `yaml:"user_agent"`
	CookieName    string        `yaml:"cookie_name"`
	SessionCookie string        `yaml:"session_cookie"`
}

// Config is one deployment: where to listen, what to front, and how pages
// are identified and rewritten.
type Config struct {
	Listen      string            `yaml:"listen"`
	Upstream    string            `yaml:"upstream"`
	LogLevel    string            `yaml:"log_level"`
	Strategy    string            `yaml:"strategy"`
	IgnoreQuery bool              `yaml:"ignore_query"`
	Selectors   map[string]string `yaml:"selectors"`
	Pages       []PageRoute       `yaml:"pages"`
	Workflow    Workflow          `yaml:"workflow"`
	Stylesheet  Stylesheet        `yaml:"stylesheet"`
	Browser     Browser           `yaml:"browser"`
}

// Default returns the Django admin defaults.
func Default() Config {
	sel := make(map[string]string)
	for kind, s := range render.DefaultSelectors() {
		sel[string(kind)] = s
	}
	wf := render.DefaultWorkflowConfig()
	return Config{
		Listen:    defaultListen,
		LogLevel:  "info",
		Strategy:  render.StrategyPath.String(),
		Selectors: sel,
		Workflow: Workflow{
			SelectName:  wf.SelectName,
			ExportValue: wf.ExportValue,
			ToggleID:    wf.ToggleID,
			RowSelector: render.DefaultRowSelector,
			Delay:       wf.Delay,
			WaitTimeout: defaultWaitTimeout,
		},
		Browser: Browser{
			Headless:   true,
			Timeout:    25 * time.Second,
			CookieName: "sessionid",
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := decode(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	get := func(key string) string {
		if v, ok := lookup(key); ok {
			return strings.TrimSpace(v)
		}
		return ""
	}
	if v := get("ADMINMEDIA_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := get("PORT"); v != "" {
		c.Listen = ":" + v
	}
	if v := get("ADMINMEDIA_UPSTREAM"); v != "" {
		c.Upstream = v
	}
	if v := get("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := get("ADMINMEDIA_STRATEGY"); v != "" {
		c.Strategy = v
	}
	if v := get("ADMINMEDIA_SESSION_COOKIE"); v != "" {
		c.Browser.SessionCookie = v
	}
}

// Render compiles the deployment into a render.Config.
func (c Config) Render(logger *slog.Logger) (render.Config, error) {
	strategy, err := render.ParseStrategy(c.Strategy)
	if err != nil {
		return render.Config{}, err
	}

	set := render.SelectorSet{}
	for name, sel := range c.Selectors {
		kind, err := render.ParseMediaKind(name)
		if err != nil {
			return render.Config{}, fmt.Errorf("config: selectors: %w", err)
		}
		set[kind] = sel
	}
	selectors, err := render.CompileSelectors(set)
	if err != nil {
		return render.Config{}, fmt.Errorf("config: %w", err)
	}

	table := render.DefaultTable(strategy)
	for i, p := range c.Pages {
		if p.Key == "" {
			return render.Config{}, fmt.Errorf("config: pages[%d]: empty key", i)
		}
		kind, err := render.ParsePageKind(p.Kind)
		if err != nil {
			return render.Config{}, fmt.Errorf("config: pages[%d]: %w", i, err)
		}
		table.Route(p.Key, kind)
		if len(p.Actions) == 0 {
			continue
		}
		ids := make([]render.TransformID, 0, len(p.Actions))
		for _, a := range p.Actions {
			id, err := render.ParseTransformID(a)
			if err != nil {
				return render.Config{}, fmt.Errorf("config: pages[%d]: %w", i, err)
			}
			ids = append(ids, id)
		}
		table.SetActions(kind, ids...)
	}

	if c.Workflow.Delay < 0 {
		return render.Config{}, fmt.Errorf("config: workflow.delay must not be negative")
	}

	if logger == nil {
		logger = slog.Default()
	}
	ss, err := c.stylesheet()
	if err != nil {
		return render.Config{}, err
	}
	if ss != nil {
		logger.Debug("media stylesheet loaded", "path", c.Stylesheet.Path, "rules", ss.Rules())
	}
	return render.Config{
		Identifier: render.Identifier{Strategy: strategy, IgnoreQuery: c.IgnoreQuery},
		Table:      table,
		Selectors:  selectors,
		Workflow: render.WorkflowConfig{
			SelectName:  c.Workflow.SelectName,
			ExportValue: c.Workflow.ExportValue,
			ToggleID:    c.Workflow.ToggleID,
			Delay:       c.Workflow.Delay,
		},
		Stylesheet: ss,
		Scheduler:  render.TimerScheduler{},
		Logger:     logger,
	}, nil
}

func (c Config) stylesheet() (*render.Stylesheet, error) {
	if c.Stylesheet.Disabled {
		return nil, nil
	}
	if c.Stylesheet.Path == "" {
		return render.DefaultStylesheet(), nil
	}
	data, err := os.ReadFile(c.Stylesheet.Path)
	if err != nil {
		return nil, fmt.Errorf("config: stylesheet: %w", err)
	}
	ss, err := render.ParseStylesheet(string(data))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", c.Stylesheet.Path, err)
	}
	return ss, nil
}
