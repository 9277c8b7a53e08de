package security

import (
	"net/http"
)

// MaxBodySizeMiddleware returns middleware that limits the request body size.
// The limit is specified in megabytes. The analyze endpoint reads the whole
// body before decoding, so the cap has to sit in front of the handlers.
func MaxBodySizeMiddleware(maxSizeMB int) func(http.Handler) http.Handler {
	maxBytes := int64(maxSizeMB) * 1024 * 1024

	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
