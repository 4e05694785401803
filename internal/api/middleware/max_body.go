package middleware

import (
	"fmt"
	"net/http"

	"github.com/prometric-ai/prometric/internal/api"
)

// MaxBodyBytes caps request payload size. Ingestion carries whole source
// texts in the body, so the cap is sized for documents rather than typical
// JSON envelopes. Declared oversize requests are rejected up front; chunked
// bodies are cut off by the reader at the same limit.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 || r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > limit {
				api.Error(w, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("request body exceeds %d bytes", limit))
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
