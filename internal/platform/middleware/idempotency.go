// internal/platform/middleware/idempotency.go
package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"lendhall/internal/platform/cache"
	"lendhall/internal/platform/web"
)

const idempotencyHeader = "Idempotency-Key"

// Idempotency rejects replays of mutating requests that carry an
// Idempotency-Key already seen within the TTL. Requests without the
// header pass through untouched, as do all reads. With no cache
// configured this is a no-op.
func Idempotency(c *cache.Cache, ttl time.Duration, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(idempotencyHeader)
			if c == nil || key == "" || r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			ok, err := c.SetNX(r.Context(), "idem:"+r.Method+":"+r.URL.Path+":"+key, "1", ttl)
			if err != nil {
				// Cache trouble must not block writes.
				logger.Warn().Err(err).Msg("idempotency check failed, letting request through")
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				web.RespondJSON(w, http.StatusConflict, map[string]string{
					"error": "duplicate request: idempotency key already used",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
