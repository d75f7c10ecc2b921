package proxy

import (
	"mime"
	"net/http"
	"strings"
)

func isHTML(h http.Header) bool {
	ct := h.Get("Content-Type")
	if ct == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}

func copyHeader(dst, src http.Header, names ...string) {
	for _, k := range names {
		for _, v := range src.Values(k) {
			dst.Add(k, v)
		}
	}
}
