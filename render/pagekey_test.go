package render

import (
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func mustDoc(t *testing.T, src string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestIdentifyPath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		in          string
		ignoreQuery bool
		want        string
	}{
		{"absolute", "https://admin.example.com/admin/blog/post/", false, "/admin/blog/post/"},
		{"request uri", "/admin/blog/post/", false, "/admin/blog/post/"},
		{"keeps query", "http://h/admin/blog/post/?o=1&p=2", false, "/admin/blog/post/?o=1&p=2"},
		{"keeps fragment", "http://h/admin/blog/post/#top", false, "/admin/blog/post/#top"},
		{"ignore query", "http://h/admin/blog/post/?o=1#top", true, "/admin/blog/post/"},
		{"bare origin", "http://h", false, "/"},
		{"escaped path", "http://h/admin/caf%C3%A9/", false, "/admin/caf%C3%A9/"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := IdentifyPath(tc.in, tc.ignoreQuery)
			if err != nil {
				t.Fatalf("IdentifyPath(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("IdentifyPath(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestIdentifyPathInvalid(t *testing.T) {
	t.Parallel()
	if _, err := IdentifyPath("http://[::1", false); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestIdentifyHeading(t *testing.T) {
	t.Parallel()
	doc := mustDoc(t, `<html><body><h1>
	   Asistencias Semanales  </h1><h1>second</h1></body></html>`)
	got, err := IdentifyHeading(doc)
	if err != nil {
		t.Fatalf("IdentifyHeading: %v", err)
	}
	if got != "asistencias semanales" {
		t.Fatalf("heading key = %q", got)
	}
}

func TestIdentifyHeadingMissing(t *testing.T) {
	t.Parallel()
	doc := mustDoc(t, `<html><body><h2>Not a title</h2></body></html>`)
	if _, err := IdentifyHeading(doc); !errors.Is(err, ErrNoHeading) {
		t.Fatalf("expected ErrNoHeading, got %v", err)
	}
}

func TestIdentifierUsesOneStrategy(t *testing.T) {
	t.Parallel()
	doc := mustDoc(t, `<html><body><h1>Asistencias semanales</h1></body></html>`)
	pageURL := "http://h/admin/attendance/weeklyattendance/"

	byPath, err := Identifier{Strategy: StrategyPath}.Identify(doc, pageURL)
	if err != nil || byPath != "/admin/attendance/weeklyattendance/" {
		t.Fatalf("path key = %q, %v", byPath, err)
	}
	byHeading, err := Identifier{Strategy: StrategyHeading}.Identify(doc, pageURL)
	if err != nil || byHeading != "asistencias semanales" {
		t.Fatalf("heading key = %q, %v", byHeading, err)
	}
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()
	cases := map[string]Strategy{"": StrategyPath, "PATH": StrategyPath, "heading": StrategyHeading, " h1 ": StrategyHeading}
	for in, want := range cases {
		got, err := ParseStrategy(in)
		if err != nil || got != want {
			t.Fatalf("ParseStrategy(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseStrategy("cookie"); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}
