package http

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const requestTimeout = 15 * time.Second

// sanitizeInput trims whitespace and drops control characters other than
// tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// withTimeout bounds store work done on behalf of a request.
func withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), requestTimeout)
}

// pathID returns the {id} wildcard, sanitized.
func pathID(r *http.Request) string {
	return sanitizeInput(r.PathValue("id"))
}
