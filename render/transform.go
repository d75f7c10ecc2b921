package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrUnknownTransform is returned for transform ids with no implementation.
var ErrUnknownTransform = errors.New("render: unknown transform")

// TransformID names one entry of a page's action list.
type TransformID string

const (
	RenderIcon             TransformID = "render_icon"
	RenderImage            TransformID = "render_image"
	RenderVideo            TransformID = "render_video"
	RenderAudio            TransformID = "render_audio"
	RenderURL              TransformID = "render_url"
	ExportWeeklyAttendance TransformID = "export_weekly_attendance"
)

// Class names put on produced elements.
const (
	ClassMedia = "rendered-media"
	ClassIcon  = "rendered-icon"
	ClassImage = "rendered-image"
	ClassVideo = "rendered-video"
	ClassAudio = "rendered-audio"
	ClassLink  = "url-link"
)

// Transform rewrites part of env.Doc or drives env.Controls.
type Transform func(ctx context.Context, env *Env) error

var transforms = map[TransformID]Transform{
	RenderIcon:             renderIcon,
	RenderImage:            renderImage,
	RenderVideo:            renderVideo,
	RenderAudio:            renderAudio,
	RenderURL:              renderURL,
	ExportWeeklyAttendance: exportWeeklyAttendance,
}

// ParseTransformID validates a transform name from config.
func ParseTransformID(raw string) (TransformID, error) {
	id := TransformID(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := transforms[id]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTransform, raw)
	}
	return id, nil
}

// Env is the state every transform of one page load shares.
type Env struct {
	Doc *goquery.Document
	// PageURL resolves relative hrefs; nil leaves them untouched.
	PageURL   *url.URL
	Selectors *Selectors
	Controls  Controls
	Scheduler Scheduler
	Workflow  WorkflowConfig
	Logger    *slog.Logger

	workflows     []*Workflow
	mediaRendered bool
}

// Workflows returns the workflows started during this page load.
func (e *Env) Workflows() []*Workflow { return e.workflows }

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// resolve mirrors an anchor's href property: relative references are made
// absolute against the page URL, anything unparsable passes through.
func (e *Env) resolve(href string) string {
	if e.PageURL == nil || href == "" {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil || ref.IsAbs() {
		return href
	}
	return e.PageURL.ResolveReference(ref).String()
}

func renderIcon(_ context.Context, env *Env) error {
	env.replaceAnchors(RenderIcon, KindIcon, func(src string) *html.Node {
		return element(atom.Img, attr("class", ClassIcon+" "+ClassMedia), attr("src", src))
	})
	return nil
}

func renderImage(_ context.Context, env *Env) error {
	env.replaceAnchors(RenderImage, KindImage, func(src string) *html.Node {
		return element(atom.Img, attr("class", ClassImage+" "+ClassMedia), attr("src", src))
	})
	return nil
}

func renderVideo(_ context.Context, env *Env) error {
	env.replaceAnchors(RenderVideo, KindVideo, func(src string) *html.Node {
		return player(atom.Video, ClassVideo, src, "video/mp4")
	})
	return nil
}

func renderAudio(_ context.Context, env *Env) error {
	env.replaceAnchors(RenderAudio, KindAudio, func(src string) *html.Node {
		return player(atom.Audio, ClassAudio, src, "audio/mp3")
	})
	return nil
}

// renderURL turns a cell's text into a link opening in a new tab.
func renderURL(_ context.Context, env *Env) error {
	n := 0
	env.Selectors.Find(env.Doc, KindURL).Each(func(_ int, cell *goquery.Selection) {
		target := strings.TrimSpace(cell.Text())
		if target == "" {
			return
		}
		link := element(atom.A,
			attr("class", ClassLink),
			attr("href", target),
			attr("target", "_blank"),
		)
		link.AppendChild(&html.Node{Type: html.TextNode, Data: target})
		cell.Empty()
		cell.AppendNodes(link)
		n++
	})
	env.noteRendered(RenderURL, n)
	return nil
}

// replaceAnchors swaps the content of each matched anchor's parent for the
// element build returns. Anchors already detached by an earlier sibling's
// replacement are skipped.
func (e *Env) replaceAnchors(id TransformID, kind MediaKind, build func(src string) *html.Node) {
	n := 0
	e.Selectors.Find(e.Doc, kind).Each(func(_ int, a *goquery.Selection) {
		if a.Nodes[0].Parent == nil {
			return
		}
		src := e.resolve(a.AttrOr("href", ""))
		parent := a.Parent()
		parent.Empty()
		parent.AppendNodes(build(src))
		n++
	})
	e.noteRendered(id, n)
}

func (e *Env) noteRendered(id TransformID, n int) {
	if n > 0 {
		e.mediaRendered = true
	}
	e.logger().Debug("transform applied", "transform", string(id), "elements", n)
}

func player(tag atom.Atom, class, src, mime string) *html.Node {
	p := element(tag, attr("class", class+" "+ClassMedia), attr("controls", ""))
	p.AppendChild(element(atom.Source, attr("src", src), attr("type", mime)))
	return p
}

func element(tag atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: tag,
		Data:     tag.String(),
		Attr:     attrs,
	}
}

func attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

func exportWeeklyAttendance(ctx context.Context, env *Env) error {
	if env.Controls == nil {
		return fmt.Errorf("render: %s: %w", ExportWeeklyAttendance, ErrNoControls)
	}
	wf := NewWorkflow(env.Workflow, env.Controls, env.Scheduler, env.logger())
	if err := wf.Start(ctx); err != nil {
		return fmt.Errorf("render: %s: %w", ExportWeeklyAttendance, err)
	}
	env.workflows = append(env.workflows, wf)
	return nil
}
