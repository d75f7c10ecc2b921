package proxy

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestIsHTML(t *testing.T) {
	t.Parallel()
	cases := map[string]bool{
		"text/html; charset=utf-8": true,
		"TEXT/HTML":                true,
		"application/xhtml+xml":    true,
		"application/json":         false,
		"text/html;;bad":           true,
		"":                         false,
	}
	for ct, want := range cases {
		h := http.Header{}
		if ct != "" {
			h.Set("Content-Type", ct)
		}
		if got := isHTML(h); got != want {
			t.Fatalf("isHTML(%q) = %v, want %v", ct, got, want)
		}
	}
}

func TestReadLimited(t *testing.T) {
	t.Parallel()
	buf, whole, err := readLimited(strings.NewReader("hello"), 5)
	if err != nil || !whole || string(buf) != "hello" {
		t.Fatalf("readLimited = %q, %v, %v", buf, whole, err)
	}

	rest := io.NopCloser(strings.NewReader("hello world"))
	buf, whole, err = readLimited(rest, 4)
	if err != nil || whole {
		t.Fatalf("expected partial read, got whole=%v err=%v", whole, err)
	}
	joined, err := io.ReadAll(rejoin(buf, rest))
	if err != nil || !bytes.Equal(joined, []byte("hello world")) {
		t.Fatalf("rejoin = %q, %v", joined, err)
	}
}

func TestCopyHeader(t *testing.T) {
	t.Parallel()
	src := http.Header{}
	src.Add("Cookie", "sessionid=abc")
	src.Add("X-Secret", "no")
	dst := http.Header{}
	copyHeader(dst, src, "Cookie", "Authorization")
	if dst.Get("Cookie") != "sessionid=abc" || dst.Get("X-Secret") != "" || len(dst) != 1 {
		t.Fatalf("dst = %v", dst)
	}
}
