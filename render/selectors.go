package render

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// ErrInvalidSelector wraps cascadia parse failures in a selector set.
var ErrInvalidSelector = errors.New("render: invalid selector")

// MediaKind names a family of elements a transform rewrites.
type MediaKind string

const (
	KindIcon  MediaKind = "icon"
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
	KindAudio MediaKind = "audio"
	KindURL   MediaKind = "url"
)

// MediaKinds lists every kind in a stable order.
var MediaKinds = []MediaKind{KindIcon, KindImage, KindVideo, KindAudio, KindURL}

// ParseMediaKind accepts the lowercase kind names used in config files.
func ParseMediaKind(raw string) (MediaKind, error) {
	k := MediaKind(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range MediaKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("render: unknown media kind %q", raw)
}

// SelectorSet maps a media kind to a CSS selector.
type SelectorSet map[MediaKind]string

// DefaultSelectors matches the list_display cells of a Django admin change list.
func DefaultSelectors() SelectorSet {
	return SelectorSet{
		KindIcon:  "td.field-icon a",
		KindImage: "td.field-image a",
		KindVideo: "td.field-video a",
		KindAudio: "td.field-audio a",
		KindURL:   "td.field-url",
	}
}

// Selectors is a compiled SelectorSet. A kind with an empty selector matches
// nothing.
type Selectors struct {
	raw      SelectorSet
	matchers map[MediaKind]cascadia.Selector
}

// CompileSelectors parses every selector in set.
func CompileSelectors(set SelectorSet) (*Selectors, error) {
	s := &Selectors{
		raw:      make(SelectorSet, len(set)),
		matchers: make(map[MediaKind]cascadia.Selector, len(set)),
	}
	kinds := make([]string, 0, len(set))
	for k := range set {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, name := range kinds {
		kind := MediaKind(name)
		src := strings.TrimSpace(set[kind])
		if src == "" {
			continue
		}
		m, err := cascadia.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %q: %v", ErrInvalidSelector, kind, src, err)
		}
		s.raw[kind] = src
		s.matchers[kind] = m
	}
	return s, nil
}

// MustCompileSelectors is CompileSelectors for selector sets known to be valid.
func MustCompileSelectors(set SelectorSet) *Selectors {
	s, err := CompileSelectors(set)
	if err != nil {
		panic(err)
	}
	return s
}

// Selector returns the source selector for kind.
func (s *Selectors) Selector(kind MediaKind) string {
	if s == nil {
		return ""
	}
	return s.raw[kind]
}

// Find returns the elements of kind in document order.
func (s *Selectors) Find(doc *goquery.Document, kind MediaKind) *goquery.Selection {
	if s == nil || doc == nil {
		return &goquery.Selection{}
	}
	m, ok := s.matchers[kind]
	if !ok {
		return doc.FindNodes()
	}
	return doc.FindMatcher(m)
}

// Count reports how many elements each configured kind matches.
func (s *Selectors) Count(doc *goquery.Document) map[MediaKind]int {
	out := make(map[MediaKind]int, len(MediaKinds))
	for _, kind := range MediaKinds {
		if s.Selector(kind) == "" {
			continue
		}
		out[kind] = s.Find(doc, kind).Length()
	}
	return out
}
