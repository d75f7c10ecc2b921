package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// PageKind is a known admin page.
type PageKind int

const (
	PageUnknown PageKind = iota
	PageGroupList
	PageCategoryList
	PageLinkList
	PagePostList
	PageWeeklyAttendance
)

var pageKindNames = map[PageKind]string{
	PageUnknown:          "unknown",
	PageGroupList:        "group_list",
	PageCategoryList:     "category_list",
	PageLinkList:         "link_list",
	PagePostList:         "post_list",
	PageWeeklyAttendance: "weekly_attendance",
}

func (k PageKind) String() string {
	if name, ok := pageKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("PageKind(%d)", int(k))
}

// ParsePageKind maps a config name to a PageKind.
func ParsePageKind(raw string) (PageKind, error) {
	want := strings.ToLower(strings.TrimSpace(raw))
	for k, name := range pageKindNames {
		if k != PageUnknown && name == want {
			return k, nil
		}
	}
	return PageUnknown, fmt.Errorf("render: unknown page kind %q", raw)
}

// Table routes page keys to kinds and kinds to ordered action lists.
type Table struct {
	routes  map[string]PageKind
	actions map[PageKind][]TransformID
}

// NewTable returns a table with the default action list for every kind and
// no routes.
func NewTable() *Table {
	return &Table{
		routes: make(map[string]PageKind),
		actions: map[PageKind][]TransformID{
			PageGroupList:        {RenderIcon},
			PageCategoryList:     {RenderIcon},
			PageLinkList:         {RenderIcon, RenderURL},
			PagePostList:         {RenderImage, RenderVideo, RenderAudio},
			PageWeeklyAttendance: {ExportWeeklyAttendance},
		},
	}
}

// DefaultTable routes the admin pages of the blog and attendance apps for
// the given strategy.
func DefaultTable(strategy Strategy) *Table {
	t := NewTable()
	if strategy == StrategyHeading {
		t.Route("asistencias semanales", PageWeeklyAttendance)
		return t
	}
	t.Route("/admin/blog/group/", PageGroupList)
	t.Route("/admin/blog/category/", PageCategoryList)
	t.Route("/admin/blog/link/", PageLinkList)
	t.Route("/admin/blog/post/", PagePostList)
	t.Route("/admin/attendance/weeklyattendance/", PageWeeklyAttendance)
	return t
}

// Route maps key to kind, replacing any earlier route for key.
func (t *Table) Route(key string, kind PageKind) {
	t.routes[key] = kind
}

// SetActions replaces the action list of kind.
func (t *Table) SetActions(kind PageKind, ids ...TransformID) {
	t.actions[kind] = append([]TransformID(nil), ids...)
}

// Keys lists routed keys in sorted order.
func (t *Table) Keys() []string {
	keys := make([]string, 0, len(t.routes))
	for k := range t.routes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Resolution is a routed page and the actions to run on it.
type Resolution struct {
	Key     string
	Kind    PageKind
	Actions []TransformID
}

// Resolve looks key up by exact match. ok is false for unrouted keys.
func (t *Table) Resolve(key string) (Resolution, bool) {
	kind, ok := t.routes[key]
	if !ok || kind == PageUnknown {
		return Resolution{Key: key, Kind: PageUnknown}, false
	}
	return Resolution{
		Key:     key,
		Kind:    kind,
		Actions: append([]TransformID(nil), t.actions[kind]...),
	}, true
}

// Outcome describes one dispatch.
type Outcome struct {
	Resolution
	Matched bool
	// Applied lists the transforms that returned without error, in order.
	Applied []TransformID
}

// ErrNoEnv is returned when a routed page is dispatched without an Env.
var ErrNoEnv = errors.New("render: nil transform env")

// Dispatcher runs a page's action list.
type Dispatcher struct {
	table    *Table
	registry map[TransformID]Transform
	logger   *slog.Logger
}

func NewDispatcher(table *Table, logger *slog.Logger) *Dispatcher {
	if table == nil {
		table = NewTable()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{table: table, registry: transforms, logger: logger}
}

// Run resolves key and invokes each listed transform against env in order.
// An unrouted key does nothing; a routed key with a nil env is ErrNoEnv.
// The first failing transform stops the run; its error is returned and the
// rest are skipped.
func (d *Dispatcher) Run(ctx context.Context, env *Env, key string) (Outcome, error) {
	res, ok := d.table.Resolve(key)
	out := Outcome{Resolution: res, Matched: ok}
	if !ok {
		d.logger.Debug("page not routed", "key", key)
		return out, nil
	}
	if env == nil {
		return out, ErrNoEnv
	}
	if env.Logger == nil {
		env.Logger = d.logger
	}
	for _, id := range res.Actions {
		fn, found := d.registry[id]
		if !found {
			return out, fmt.Errorf("%w: %q", ErrUnknownTransform, id)
		}
		if err := fn(ctx, env); err != nil {
			d.logger.Warn("transform failed", "key", key, "kind", res.Kind.String(), "transform", string(id), "error", err)
			return out, err
		}
		out.Applied = append(out.Applied, id)
	}
	d.logger.Debug("page dispatched", "key", key, "kind", res.Kind.String(), "applied", len(out.Applied))
	return out, nil
}
