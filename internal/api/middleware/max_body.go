package middleware

import (
	"fmt"
	"net/http"

	"github.com/cloo-solutions/studybuddy/internal/api"
	"github.com/cloo-solutions/studybuddy/internal/domain"
)

// MaxBodyBytes caps request bodies at limit. A declared Content-Length over
// the limit is rejected up front; undeclared bodies are cut off while the
// handler decodes them, which api.Decode reports as BODY_TOO_LARGE.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		tooLarge := domain.NewDomainError(domain.ErrCodeBodyTooLarge,
			fmt.Sprintf("request body exceeds %s", formatBytes(limit)))

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > limit {
				api.HandleError(w, tooLarge)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%d MiB", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%d KiB", n>>10)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
