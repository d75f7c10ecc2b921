package proxy

import (
	"context"
	"net/http"
	"strings"
)

type pageURLKey struct{}

// serverBase is the scheme and host the client used to reach the proxy.
// X-Forwarded-* headers from a fronting proxy take precedence.
func serverBase(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := firstHeaderValue(r.Header.Get("X-Forwarded-Proto")); p == "http" || p == "https" {
		scheme = p
	}
	host := r.Host
	if h := firstHeaderValue(r.Header.Get("X-Forwarded-Host")); h != "" {
		host = h
	}
	return scheme + "://" + host
}

// pageURL is the absolute client-facing URL of r. Relative media links are
// resolved against it so they keep pointing at the proxy.
func pageURL(r *http.Request) string {
	return serverBase(r) + r.URL.RequestURI()
}

func withPageURL(ctx context.Context, u string) context.Context {
	return context.WithValue(ctx, pageURLKey{}, u)
}

func pageURLFrom(ctx context.Context) string {
	u, _ := ctx.Value(pageURLKey{}).(string)
	return u
}

func firstHeaderValue(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.ToLower(strings.TrimSpace(v))
}
