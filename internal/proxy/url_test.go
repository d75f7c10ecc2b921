package proxy

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPageURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		target string
		header map[string]string
		tls    bool
		want   string
	}{
		{
			name:   "plain",
			target: "http://proxy.local:8081/admin/blog/post/?o=1",
			want:   "http://proxy.local:8081/admin/blog/post/?o=1",
		},
		{
			name:   "tls",
			target: "https://proxy.local/admin/",
			tls:    true,
			want:   "https://proxy.local/admin/",
		},
		{
			name:   "forwarded",
			target: "http://10.0.0.5:8081/admin/blog/link/",
			header: map[string]string{"X-Forwarded-Proto": "https", "X-Forwarded-Host": "admin.example.com, edge"},
			want:   "https://admin.example.com/admin/blog/link/",
		},
		{
			name:   "bogus proto ignored",
			target: "http://proxy.local/admin/",
			header: map[string]string{"X-Forwarded-Proto": "gopher"},
			want:   "http://proxy.local/admin/",
		},
		{
			name:   "escaped path kept",
			target: "http://proxy.local/admin/blog/post/%C3%B1/",
			want:   "http://proxy.local/admin/blog/post/%C3%B1/",
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if !tc.tls {
				r.TLS = nil
			} else if r.TLS == nil {
				r.TLS = &tls.ConnectionState{}
			}
			for k, v := range tc.header {
				r.Header.Set(k, v)
			}
			if got := pageURL(r); got != tc.want {
				t.Fatalf("pageURL = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPageURLContext(t *testing.T) {
	t.Parallel()
	ctx := withPageURL(context.Background(), "http://proxy.local/admin/")
	if got := pageURLFrom(ctx); got != "http://proxy.local/admin/" {
		t.Fatalf("pageURLFrom = %q", got)
	}
	if got := pageURLFrom(context.Background()); got != "" {
		t.Fatalf("empty context = %q", got)
	}
}
