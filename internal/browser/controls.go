package browser

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"adminmedia/render"
)

// Controls operates the host controls of the tab bound to the context it
// is called with.
type Controls struct{}

var _ render.Controls = Controls{}

// SelectOption sets the select's value and fires a change event.
func (Controls) SelectOption(ctx context.Context, name, value string) error {
	sel := "select[name=" + cssString(name) + "]"
	if err := requirePresent(ctx, sel); err != nil {
		return err
	}
	notify := fmt.Sprintf(`document.querySelector(%s).dispatchEvent(new Event("change", {bubbles: true}))`, strconv.Quote(sel))
	return chromedp.Run(ctx,
		chromedp.SetValue(sel, value, chromedp.ByQuery),
		chromedp.Evaluate(notify, nil),
	)
}

// Click clicks the element with the given id.
func (Controls) Click(ctx context.Context, id string) error {
	sel := "[id=" + cssString(id) + "]"
	if err := requirePresent(ctx, sel); err != nil {
		return err
	}
	return chromedp.Run(ctx, chromedp.Click(sel, chromedp.ByQuery))
}

func requirePresent(ctx context.Context, sel string) error {
	var nodes []*cdp.Node
	if err := chromedp.Run(ctx, chromedp.Nodes(sel, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return err
	}
	if len(nodes) == 0 {
		return fmt.Errorf("%w: %s", render.ErrControlNotFound, sel)
	}
	return nil
}

// cssString quotes s as a CSS string literal.
func cssString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\a `)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
