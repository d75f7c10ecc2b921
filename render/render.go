// Package render identifies admin pages and applies their media transforms
// and export workflow to a parsed document.
package render

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Config is everything one page load needs besides the document.
type Config struct {
	Identifier Identifier
	Table      *Table
	Selectors  *Selectors
	Workflow   WorkflowConfig
	// Stylesheet is injected when media was rendered; nil disables it.
	Stylesheet *Stylesheet
	Scheduler  Scheduler
	Logger     *slog.Logger
}

// DefaultConfig uses the path strategy and the Django admin defaults.
func DefaultConfig() Config {
	return Config{
		Identifier: Identifier{Strategy: StrategyPath},
		Table:      DefaultTable(StrategyPath),
		Selectors:  MustCompileSelectors(DefaultSelectors()),
		Workflow:   DefaultWorkflowConfig(),
		Stylesheet: DefaultStylesheet(),
		Scheduler:  TimerScheduler{},
		Logger:     slog.Default(),
	}
}

// Result is what Apply did to one page.
type Result struct {
	Outcome
	Workflows     []*Workflow
	StyleInjected bool
}

// Wait blocks until every workflow started on the page is Done and returns
// the first select-all failure.
func (r *Result) Wait(ctx context.Context) error {
	var first error
	for _, wf := range r.Workflows {
		if err := wf.Wait(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Apply identifies the page, resolves its actions and runs them on doc.
// pageURL may be absolute or a request URI. The returned Result is non-nil
// even when a transform fails, so callers can see what was applied.
func Apply(ctx context.Context, doc *goquery.Document, pageURL string, controls Controls, cfg Config) (*Result, error) {
	key, err := cfg.Identifier.Identify(doc, pageURL)
	if err != nil {
		return nil, err
	}
	held := &heldScheduler{next: cfg.Scheduler}
	env := &Env{
		Doc:       doc,
		Selectors: cfg.Selectors,
		Controls:  controls,
		Scheduler: held,
		Workflow:  cfg.Workflow,
		Logger:    cfg.Logger,
	}
	if u, err := url.Parse(pageURL); err == nil && u.IsAbs() {
		env.PageURL = u
	}
	out, runErr := NewDispatcher(cfg.Table, cfg.Logger).Run(ctx, env, key)
	res := &Result{Outcome: out, Workflows: env.Workflows()}
	if env.mediaRendered {
		res.StyleInjected = cfg.Stylesheet.Inject(doc)
	}
	// Deferred steps may touch doc, so none runs before Apply is done with it.
	held.release()
	return res, runErr
}

// heldScheduler queues AfterFunc calls until release hands them to next.
// Delays count from release.
type heldScheduler struct {
	next Scheduler

	mu       sync.Mutex
	released bool
	queued   []heldCall
}

type heldCall struct {
	d time.Duration
	f func()
}

func (h *heldScheduler) AfterFunc(d time.Duration, f func()) {
	h.mu.Lock()
	if !h.released {
		h.queued = append(h.queued, heldCall{d, f})
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()
	h.scheduler().AfterFunc(d, f)
}

func (h *heldScheduler) release() {
	h.mu.Lock()
	queued := h.queued
	h.queued = nil
	h.released = true
	h.mu.Unlock()
	for _, c := range queued {
		h.scheduler().AfterFunc(c.d, c.f)
	}
}

func (h *heldScheduler) scheduler() Scheduler {
	if h.next == nil {
		return TimerScheduler{}
	}
	return h.next
}
