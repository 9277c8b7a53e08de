package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Middleware returns HTTP middleware for request metrics.
func Middleware(next http.Handler) http.Handler {
	if !enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			path := normalizePath(r.URL.Path)

			httpRequestsTotal.WithLabelValues(
				r.Method,
				path,
				strconv.Itoa(rw.status),
			).Inc()

			httpDuration.WithLabelValues(
				r.Method,
				path,
			).Observe(time.Since(start).Seconds())
		}()

		next.ServeHTTP(rw, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

// normalizePath replaces address path segments with a placeholder so the
// contracts endpoint does not explode metric cardinality.
//
//	/api/v1/contracts/0x1234...abcd -> /api/v1/contracts/{address}
func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/api/v1/") {
		return path
	}

	parts := strings.Split(path, "/")
	for i, part := range parts {
		if isAddress(part) {
			parts[i] = "{address}"
		}
	}
	return strings.Join(parts, "/")
}

// isAddress reports whether a path segment looks like a hex address.
func isAddress(segment string) bool {
	if len(segment) < 4 || !strings.HasPrefix(segment, "0x") {
		return false
	}
	for _, c := range segment[2:] {
		isDigit := c >= '0' && c <= '9'
		isLowerHex := c >= 'a' && c <= 'f'
		isUpperHex := c >= 'A' && c <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return false
		}
	}
	return true
}
