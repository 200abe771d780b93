package middleware

import (
	"log/slog"
	"net/http"

	"github.com/teamcoffee/storefront/pkg/logger"
)

// HeaderCorrelationID is the request header carrying the caller's
// correlation id.
const HeaderCorrelationID = "X-Correlation-ID"

// RequestLogger stores a request-scoped logger in the context, enriched with
// the caller's correlation id. Downstream handlers retrieve it with
// logger.FromContext(ctx).
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if id := r.Header.Get(HeaderCorrelationID); id != "" {
				ctx = logger.WithCorrelationID(ctx, id)
			}
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
