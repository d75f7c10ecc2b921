package render

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const styleMarker = "data-adminmedia"

// DefaultStylesheetText keeps rendered media inside a change list cell.
const DefaultStylesheetText = `
.rendered-media { display: block; max-width: 160px; max-height: 120px; }
.rendered-icon { width: 32px; height: 32px; object-fit: contain; }
.rendered-image { object-fit: cover; border-radius: 4px; }
audio.rendered-media { max-height: 40px; }
a.url-link { word-break: break-all; }
`

// Stylesheet is CSS injected into pages where media was rendered.
type Stylesheet struct {
	text  string
	rules int
}

// ParseStylesheet checks txt with the CSS parser. Empty input yields nil,
// which disables injection.
func ParseStylesheet(txt string) (*Stylesheet, error) {
	trimmed := strings.TrimSpace(txt)
	if trimmed == "" {
		return nil, nil
	}
	sheet, err := parser.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("render: parse stylesheet: %w", err)
	}
	return &Stylesheet{text: sheet.String(), rules: len(sheet.Rules)}, nil
}

// DefaultStylesheet parses DefaultStylesheetText.
func DefaultStylesheet() *Stylesheet {
	ss, err := ParseStylesheet(DefaultStylesheetText)
	if err != nil {
		panic(err)
	}
	return ss
}

// Rules is the number of top-level rules.
func (s *Stylesheet) Rules() int {
	if s == nil {
		return 0
	}
	return s.rules
}

func (s *Stylesheet) String() string {
	if s == nil {
		return ""
	}
	return s.text
}

// Inject appends the stylesheet to the document head once. It reports
// whether a style element was added.
func (s *Stylesheet) Inject(doc *goquery.Document) bool {
	if s == nil || doc == nil {
		return false
	}
	if doc.Find("style[" + styleMarker + "]").Length() > 0 {
		return false
	}
	head := doc.Find("head").First()
	if head.Length() == 0 {
		return false
	}
	style := element(atom.Style, attr(styleMarker, ""))
	style.AppendChild(&html.Node{Type: html.TextNode, Data: s.text})
	head.AppendNodes(style)
	return true
}
