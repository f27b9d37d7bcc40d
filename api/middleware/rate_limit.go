package middleware

import (
	"net/http"
	"strconv"

	"github.com/angelmondragon/creditmeter-backend/api/responses"
	"github.com/angelmondragon/creditmeter-backend/internal/ratelimit"
	pkgerrors "github.com/angelmondragon/creditmeter-backend/pkg/errors"
	"github.com/angelmondragon/creditmeter-backend/pkg/logger"
	"github.com/angelmondragon/creditmeter-backend/pkg/metrics"
)

// RateLimit rejects requests beyond the limiter's fixed window with 429
// and a Retry-After header. A failing counter store lets traffic through.
func RateLimit(limiter *ratelimit.Limiter, m *metrics.LedgerMetrics, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			client := ratelimit.ClientKey(r)

			decision, err := limiter.Check(ctx, client)
			if err != nil {
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{"limiter": limiter.Name()})
					logg.Error(logCtx, "rate_limit.store_failed", err)
				}
				next.ServeHTTP(w, r)
				return
			}
			if decision.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := ratelimit.RetryAfterSeconds(decision.RetryAfter)
			m.IncRateLimited(limiter.Name())
			if logg != nil {
				policy := limiter.Policy()
				logCtx := logg.WithFields(ctx, map[string]any{
					"limiter":        limiter.Name(),
					"client":         client,
					"attempts":       decision.Count,
					"limit":          policy.MaxAttempts,
					"window_seconds": int(policy.Window.Seconds()),
				})
				logg.Warn(logCtx, "rate_limit.blocked")
			}

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded").
				WithDetails(map[string]any{"retry_after_seconds": retryAfter}))
		})
	}
}
