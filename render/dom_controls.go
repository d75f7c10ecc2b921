package render

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// DefaultRowSelector matches the per-row checkboxes of a Django change list.
const DefaultRowSelector = "input.action-select"

// DOMControls operates host controls on a parsed document. Clicking the
// select-all toggle propagates its checked state to every row checkbox, as
// the host's actions script does in a browser.
type DOMControls struct {
	doc         *goquery.Document
	toggleID    string
	rowSelector string

	mu     sync.Mutex
	clicks map[string]int
}

// NewDOMControls binds controls to doc. toggleID names the select-all checkbox.
func NewDOMControls(doc *goquery.Document, toggleID, rowSelector string) *DOMControls {
	return &DOMControls{
		doc:         doc,
		toggleID:    toggleID,
		rowSelector: rowSelector,
		clicks:      make(map[string]int),
	}
}

// SelectOption marks the option whose value equals value as the only
// selected one. An unknown value leaves no option selected.
func (c *DOMControls) SelectOption(_ context.Context, name, value string) error {
	sel := c.doc.Find("select").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.AttrOr("name", "") == name
	}).First()
	if sel.Length() == 0 {
		return fmt.Errorf("%w: select[name=%q]", ErrControlNotFound, name)
	}
	options := sel.Find("option")
	options.RemoveAttr("selected")
	options.FilterFunction(func(_ int, o *goquery.Selection) bool {
		return optionValue(o) == value
	}).First().SetAttr("selected", "selected")
	return nil
}

// Click toggles a checkbox with the given id. Other elements only record the
// activation.
func (c *DOMControls) Click(_ context.Context, id string) error {
	el := c.byID(id)
	if el.Length() == 0 {
		return fmt.Errorf("%w: #%s", ErrControlNotFound, id)
	}
	c.mu.Lock()
	c.clicks[id]++
	c.mu.Unlock()

	if !isCheckbox(el) {
		return nil
	}
	_, wasChecked := el.Attr("checked")
	setChecked(el, !wasChecked)
	if id == c.toggleID && c.rowSelector != "" {
		rows := c.doc.Find(c.rowSelector)
		setChecked(rows, !wasChecked)
		if wasChecked {
			rows.Closest("tr").RemoveClass("selected")
		} else {
			rows.Closest("tr").AddClass("selected")
		}
	}
	return nil
}

// Clicks reports how many times the element with id was activated.
func (c *DOMControls) Clicks(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clicks[id]
}

func (c *DOMControls) byID(id string) *goquery.Selection {
	return c.doc.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.AttrOr("id", "") == id
	}).First()
}

func optionValue(o *goquery.Selection) string {
	if v, ok := o.Attr("value"); ok {
		return v
	}
	return strings.TrimSpace(o.Text())
}

func isCheckbox(s *goquery.Selection) bool {
	return goquery.NodeName(s) == "input" && strings.EqualFold(s.AttrOr("type", ""), "checkbox")
}

func setChecked(s *goquery.Selection, on bool) {
	if on {
		s.SetAttr("checked", "checked")
		return
	}
	s.RemoveAttr("checked")
}
