package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"adminmedia/render"
)

const inspectTimeout = 15 * time.Second

var errForeignTarget = errors.New("inspect: path must not name a scheme, host or user")

type inspectResult struct {
	URL     string         `json:"url"`
	Key     string         `json:"key"`
	Kind    string         `json:"kind"`
	Matched bool           `json:"matched"`
	Actions []string       `json:"actions"`
	Matches map[string]int `json:"matches"`
	Error   string         `json:"error,omitempty"`
}

// handleInspect fetches an upstream page and reports how it would be
// dispatched without rewriting it or starting any workflow.
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if !strings.HasPrefix(path, "/") {
		http.Error(w, "path must start with /", http.StatusBadRequest)
		return
	}
	ref, err := url.Parse(path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	target, err := upstreamURL(s.cfg.Upstream, ref)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target.String(), nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	copyHeader(req.Header, r.Header, "Cookie", "Authorization", "Accept-Language", "User-Agent")

	client := &http.Client{Transport: s.transport, Timeout: inspectTimeout}
	resp, err := client.Do(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		http.Error(w, fmt.Sprintf("upstream returned %s", resp.Status), http.StatusBadGateway)
		return
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	res := s.inspect(doc, serverBase(r)+ref.RequestURI())
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(res)
}

func (s *Server) inspect(doc *goquery.Document, page string) inspectResult {
	out := inspectResult{URL: page, Kind: render.PageUnknown.String(), Actions: []string{}, Matches: map[string]int{}}
	for kind, n := range s.cfg.Render.Selectors.Count(doc) {
		out.Matches[string(kind)] = n
	}
	key, err := s.cfg.Render.Identifier.Identify(doc, page)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Key = key
	res, ok := s.cfg.Render.Table.Resolve(key)
	if !ok {
		return out
	}
	out.Matched = true
	out.Kind = res.Kind.String()
	for _, id := range res.Actions {
		out.Actions = append(out.Actions, string(id))
	}
	return out
}

// upstreamURL maps a path-only reference onto the upstream the same way the
// reverse proxy does: base path joined, queries merged.
func upstreamURL(base, ref *url.URL) (*url.URL, error) {
	if ref.Scheme != "" || ref.Host != "" || ref.User != nil || ref.Opaque != "" {
		return nil, errForeignTarget
	}
	u := *base
	u.Path, u.RawPath = joinURLPath(base, ref)
	switch {
	case base.RawQuery == "" || ref.RawQuery == "":
		u.RawQuery = base.RawQuery + ref.RawQuery
	default:
		u.RawQuery = base.RawQuery + "&" + ref.RawQuery
	}
	u.Fragment, u.RawFragment = "", ""
	return &u, nil
}

func joinURLPath(a, b *url.URL) (string, string) {
	if a.RawPath == "" && b.RawPath == "" {
		return singleJoiningSlash(a.Path, b.Path), ""
	}
	return singleJoiningSlash(a.Path, b.Path), singleJoiningSlash(a.EscapedPath(), b.EscapedPath())
}

func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}
