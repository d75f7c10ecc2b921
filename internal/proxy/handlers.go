package proxy

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"io"
	"net/http"
	"net/http/httputil"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"adminmedia/render"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html><body>
<h1>adminmedia</h1>
<p>Upstream: {{.Upstream}}</p>
<form action="inspect" method="get">
<h3>Inspect a page</h3>
Path: <input name="path" size="60" value="/admin/"><br>
<button type="submit">Inspect</button>
</form>
<h3>Routed pages</h3>
<ul>{{range .Keys}}<li><code>{{.}}</code></li>{{end}}</ul>
</body></html>`))

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	err := indexTemplate.Execute(&buf, struct {
		Upstream string
		Keys     []string
	}{s.cfg.Upstream.String(), s.cfg.Render.Table.Keys()})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "ok\n")
}

func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	ctx := withPageURL(r.Context(), pageURL(r))
	s.proxy.ServeHTTP(w, r.WithContext(ctx))
}

func (s *Server) rewriteRequest(pr *httputil.ProxyRequest) {
	pr.SetURL(s.cfg.Upstream)
	pr.SetXForwarded()
	// Rewriting needs plain bodies; the transport negotiates and strips
	// gzip on its own when the header is absent.
	pr.Out.Header.Del("Accept-Encoding")
}

func (s *Server) handleProxyError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	s.logger.Error("upstream request failed", "path", r.URL.Path, "error", err)
	http.Error(w, "upstream unavailable", http.StatusBadGateway)
}

func (s *Server) modifyResponse(resp *http.Response) error {
	req := resp.Request
	if req == nil || req.Method != http.MethodGet || resp.StatusCode != http.StatusOK || !isHTML(resp.Header) {
		return nil
	}
	if enc := resp.Header.Get("Content-Encoding"); enc != "" && !strings.EqualFold(enc, "identity") {
		s.metrics.pages.WithLabelValues(render.PageUnknown.String(), outcomeSkipped).Inc()
		return nil
	}

	body, whole, err := readLimited(resp.Body, maxRewriteBytes)
	if err != nil {
		return err
	}
	if !whole {
		resp.Body = rejoin(body, resp.Body)
		s.metrics.pages.WithLabelValues(render.PageUnknown.String(), outcomeSkipped).Inc()
		return nil
	}
	resp.Body.Close()

	out, kind, outcome := s.rewrite(req.Context(), body)
	s.metrics.pages.WithLabelValues(kind.String(), outcome).Inc()
	if out == nil {
		out = body
	} else {
		resp.Header.Del("ETag")
		resp.Header.Set("X-Adminmedia-Page", kind.String())
	}
	resp.Body = io.NopCloser(bytes.NewReader(out))
	resp.ContentLength = int64(len(out))
	resp.Header.Set("Content-Length", strconv.Itoa(len(out)))
	return nil
}

// rewrite applies the page's actions to body. A nil result means the
// original bytes should be served.
func (s *Server) rewrite(ctx context.Context, body []byte) ([]byte, render.PageKind, string) {
	page := pageURLFrom(ctx)
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		s.logger.Warn("parse page", "url", page, "error", err)
		return nil, render.PageUnknown, outcomeFailed
	}

	controls := render.NewDOMControls(doc, s.cfg.Render.Workflow.ToggleID, s.cfg.RowSelector)
	res, err := render.Apply(ctx, doc, page, controls, s.cfg.Render)
	if res == nil {
		s.logger.Warn("identify page", "url", page, "error", err)
		return nil, render.PageUnknown, outcomeFailed
	}
	for _, id := range res.Applied {
		s.metrics.transforms.WithLabelValues(string(id)).Inc()
	}
	if !res.Matched {
		return nil, render.PageUnknown, outcomeUnmatched
	}
	outcome := outcomeRewritten
	if err != nil {
		s.logger.Warn("page actions stopped", "url", page, "key", res.Key, "kind", res.Kind.String(), "applied", len(res.Applied), "error", err)
		outcome = outcomePartial
	}

	if len(res.Workflows) > 0 {
		wctx, cancel := context.WithTimeout(ctx, s.cfg.WaitTimeout)
		werr := res.Wait(wctx)
		cancel()
		s.metrics.workflows.WithLabelValues(workflowResult(werr)).Add(float64(len(res.Workflows)))
		if werr != nil {
			s.logger.Warn("export workflow", "url", page, "error", werr)
		}
		if ctxErr(werr) {
			// The select-all step may still fire and touch doc.
			return nil, res.Kind, outcomeFailed
		}
	}

	html, err := doc.Html()
	if err != nil {
		s.logger.Error("serialise page", "url", page, "error", err)
		return nil, res.Kind, outcomeFailed
	}
	s.logger.Debug("page rewritten", "url", page, "key", res.Key, "kind", res.Kind.String(), "applied", len(res.Applied), "style", res.StyleInjected)
	return []byte(html), res.Kind, outcome
}

func ctxErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func workflowResult(err error) string {
	switch {
	case err == nil:
		return "done"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// readLimited reads up to limit bytes. whole is false when the body is
// longer; the bytes read so far are returned and r is left open.
func readLimited(r io.Reader, limit int64) ([]byte, bool, error) {
	buf, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(buf)) > limit {
		return buf, false, nil
	}
	return buf, true, nil
}

type joinedBody struct {
	io.Reader
	io.Closer
}

func rejoin(head []byte, rest io.ReadCloser) io.ReadCloser {
	return joinedBody{Reader: io.MultiReader(bytes.NewReader(head), rest), Closer: rest}
}
