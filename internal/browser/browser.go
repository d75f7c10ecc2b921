// Package browser drives a headless Chrome tab through an admin page so the
// export workflow runs against the live host controls.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"adminmedia/render"
)

const defaultTimeout = 25 * time.Second

// Options configures the allocator and every tab it opens.
type Options struct {
	Headless bool
	Timeout  time.Duration
	// Header is sent with every request; a User-Agent entry overrides the
	// browser's own.
	Header  http.Header
	Cookies []*http.Cookie
	Logger  *slog.Logger
}

// Page is one driven page load.
type Page struct {
	URL    string
	Status int
	// HTML is the snapshot taken after load with the page's transforms
	// applied.
	HTML   string
	Result *render.Result
}

// Driver owns a Chrome allocator.
type Driver struct {
	allocator context.Context
	cancel    context.CancelFunc
	opts      Options
	logger    *slog.Logger
}

// New starts an allocator. Chrome itself is launched lazily by the first Run.
func New(opts Options) *Driver {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(opts.Headless)...)
	return &Driver{allocator: allocCtx, cancel: cancel, opts: opts, logger: opts.Logger}
}

func allocatorOptions(headless bool) []chromedp.ExecAllocatorOption {
	return append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-client-side-phishing-detection", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("disable-extensions", true),
	)
}

// Close shuts the allocator and any Chrome it started.
func (d *Driver) Close() {
	if d.cancel != nil {
		d.cancel()
	}
}

// Run loads target, applies its actions with the tab as the host controls
// and waits up to waitTimeout for the export workflow to finish.
func (d *Driver) Run(ctx context.Context, target string, cfg render.Config, waitTimeout time.Duration) (*Page, error) {
	if strings.TrimSpace(target) == "" {
		return nil, errors.New("browser: empty target url")
	}
	taskCtx, cancelTab := chromedp.NewContext(d.allocator)
	defer cancelTab()

	if ctx != nil {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithCancel(taskCtx)
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-taskCtx.Done():
			}
		}()
		defer cancel()
	}
	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, d.opts.Timeout)
	defer cancelTimeout()

	var (
		mu        sync.Mutex
		mainID    network.RequestID
		status    int
		finalURL  string
		outerHTML string
	)
	chromedp.ListenTarget(taskCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			if e.Type == network.ResourceTypeDocument {
				mu.Lock()
				mainID = e.RequestID
				mu.Unlock()
			}
		case *network.EventResponseReceived:
			mu.Lock()
			if e.RequestID == mainID && e.Response != nil {
				status = int(e.Response.Status)
			}
			mu.Unlock()
		}
	})

	actions := d.setupActions(target)
	actions = append(actions,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &outerHTML, chromedp.ByQuery),
	)
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return nil, fmt.Errorf("browser: load %s: %w", target, err)
	}
	if finalURL == "" {
		finalURL = target
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(outerHTML))
	if err != nil {
		return nil, fmt.Errorf("browser: parse %s: %w", finalURL, err)
	}
	res, err := render.Apply(taskCtx, doc, finalURL, Controls{}, cfg)
	if res == nil {
		return nil, err
	}
	if err != nil {
		d.logger.Warn("page actions stopped", "url", finalURL, "key", res.Key, "error", err)
	}
	if len(res.Workflows) > 0 {
		wctx, cancel := context.WithTimeout(taskCtx, waitTimeout)
		werr := res.Wait(wctx)
		cancel()
		if werr != nil && err == nil {
			err = werr
		}
	}

	snapshot, herr := doc.Html()
	if herr != nil {
		return nil, fmt.Errorf("browser: serialise %s: %w", finalURL, herr)
	}
	mu.Lock()
	page := &Page{URL: finalURL, Status: status, HTML: snapshot, Result: res}
	mu.Unlock()
	d.logger.Info("page driven", "url", finalURL, "status", status, "key", res.Key, "kind", res.Kind.String(), "applied", len(res.Applied), "workflows", len(res.Workflows))
	return page, err
}

func (d *Driver) setupActions(target string) []chromedp.Action {
	actions := []chromedp.Action{network.Enable()}

	hdr := d.opts.Header.Clone()
	if hdr == nil {
		hdr = http.Header{}
	}
	if ua := hdr.Get("User-Agent"); ua != "" {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetUserAgentOverride(ua).Do(ctx)
		}))
		hdr.Del("User-Agent")
	}
	if extra := extraHeaders(hdr); len(extra) > 0 {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			return network.SetExtraHTTPHeaders(extra).Do(ctx)
		}))
	}
	if params := cookieParams(d.opts.Cookies, target); len(params) > 0 {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			return network.SetCookies(params).Do(ctx)
		}))
	}
	return actions
}
