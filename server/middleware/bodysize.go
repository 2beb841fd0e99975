package middleware

import (
	"fmt"
	"net/http"
	"strings"
)

// DefaultMaxBodySize applies when a size string cannot be parsed.
const DefaultMaxBodySize = 1 << 20

// BodySizeLimit caps request bodies at maxSize (e.g. "1MB", "512KB").
func BodySizeLimit(maxSize string) Middleware {
	limit := ParseSize(maxSize, DefaultMaxBodySize)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ParseSize parses sizes such as "10MB", "512KB", "1GB" or a plain byte
// count, returning fallback when s is empty or malformed.
func ParseSize(s string, fallback int64) int64 {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return fallback
	}

	multiplier := int64(1)
	for _, u := range []struct {
		suffix string
		mult   int64
	}{{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10}, {"B", 1}} {
		if strings.HasSuffix(s, u.suffix) {
			multiplier = u.mult
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			break
		}
	}

	var n int64
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil || n <= 0 {
		return fallback
	}
	return n * multiplier
}
