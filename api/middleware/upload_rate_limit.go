package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/docuflat/docuflat-backend/api/responses"
	pkgerrors "github.com/docuflat/docuflat-backend/pkg/errors"
	"github.com/docuflat/docuflat-backend/pkg/logger"
)

// RateLimiterStore is the counter surface the limiter needs; *redis.Client
// satisfies it and owns the key namespacing.
type RateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// UploadRateLimitPolicy caps how many uploads a single user may start per
// window. The pipeline forks a sidecar process per upload, so this is a
// capacity guard as much as an abuse guard.
type UploadRateLimitPolicy struct {
	window    time.Duration
	userLimit int
}

func NewUploadRateLimitPolicy(window time.Duration, userLimit int) UploadRateLimitPolicy {
	return UploadRateLimitPolicy{window: window, userLimit: userLimit}
}

func (p UploadRateLimitPolicy) enabled() bool {
	return p.window > 0 && p.userLimit > 0
}

// UploadRateLimit enforces a per-user fixed window counter. It must run after
// Auth so the user identity is already on the context.
func UploadRateLimit(policy UploadRateLimitPolicy, store RateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			userID := UserIDFromContext(ctx)
			if userID == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			scope := fmt.Sprintf("upload:user:%s", userID)
			allowed, count, err := store.FixedWindowAllow(ctx, scope, int64(policy.userLimit), policy.window)
			if err != nil {
				responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if !allowed {
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{
						"attempts":       count,
						"limit":          policy.userLimit,
						"window_seconds": int(policy.window.Seconds()),
					})
					logg.Warn(logCtx, "upload.rate_limit.blocked")
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "upload limit reached, try again later"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
