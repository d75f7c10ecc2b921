package render

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoHeading is returned by the heading strategy when the page has no h1.
var ErrNoHeading = errors.New("render: page has no heading")

// Strategy selects how a page key is derived. Only one is active per deployment.
type Strategy int

const (
	StrategyPath Strategy = iota
	StrategyHeading
)

func (s Strategy) String() string {
	switch s {
	case StrategyHeading:
		return "heading"
	default:
		return "path"
	}
}

// ParseStrategy maps a config value to a Strategy. Empty means path.
func ParseStrategy(raw string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "path", "url":
		return StrategyPath, nil
	case "heading", "h1", "title":
		return StrategyHeading, nil
	}
	return StrategyPath, fmt.Errorf("render: unknown page key strategy %q", raw)
}

// Identifier derives the page key for one page load.
type Identifier struct {
	Strategy Strategy
	// IgnoreQuery drops the query and fragment from path keys.
	IgnoreQuery bool
}

// Identify returns the key for doc, loaded from pageURL.
func (id Identifier) Identify(doc *goquery.Document, pageURL string) (string, error) {
	if id.Strategy == StrategyHeading {
		return IdentifyHeading(doc)
	}
	return IdentifyPath(pageURL, id.IgnoreQuery)
}

// IdentifyHeading reads the first top-level heading, lowercased and trimmed.
func IdentifyHeading(doc *goquery.Document) (string, error) {
	if doc == nil {
		return "", ErrNoHeading
	}
	h := doc.Find("h1").First()
	if h.Length() == 0 {
		return "", ErrNoHeading
	}
	return strings.ToLower(strings.TrimSpace(h.Text())), nil
}

// IdentifyPath strips scheme and host from rawURL. The leading slash is
// always present; query and fragment are kept unless ignoreQuery is set.
func IdentifyPath(rawURL string, ignoreQuery bool) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("render: parse page url: %w", err)
	}
	key := u.EscapedPath()
	if !strings.HasPrefix(key, "/") {
		key = "/" + key
	}
	if ignoreQuery {
		return key, nil
	}
	if u.RawQuery != "" || u.ForceQuery {
		key += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		key += "#" + u.EscapedFragment()
	}
	return key, nil
}
