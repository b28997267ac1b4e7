package domain

import (
	"context"
	"net/http"
	"strings"
)

// CookieEntry is a single session cookie read live from the host cookie
// store. Entries exist only for the lifetime of one request.
type CookieEntry struct {
	Name   string
	Value  string
	Domain string
}

// AuthHeaderSet maps header names to values for one authenticated backend
// request. It is built fresh per request and discarded after use.
type AuthHeaderSet map[string]string

// Apply sets all headers on an outbound request.
func (h AuthHeaderSet) Apply(req *http.Request) {
	for name, value := range h {
		req.Header.Set(name, value)
	}
}

// CookieHeader joins entries into a Cookie header value.
func CookieHeader(cookies []CookieEntry) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// CookieStore gives read access to the host's cookie store.
type CookieStore interface {
	// Cookies returns all cookies stored for the exact domain. Cookie stores
	// treat "example.com" and ".example.com" as distinct domains, so callers
	// query both forms.
	Cookies(ctx context.Context, domain string) ([]CookieEntry, error)

	// Available reports whether the store can be queried at all.
	Available() bool
}
