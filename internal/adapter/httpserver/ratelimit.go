package httpserver

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	apperrors "github.com/vmanilo/paralimni/internal/platform/errors"
)

// Idle client buckets are dropped after this long.
const rateLimiterExpiry = 5 * time.Minute

// newRateLimiter applies a token bucket per client IP to the API group. A
// non-positive rate disables limiting. Rejections are returned as
// rate_limited errors and rendered by ErrorHandlingMiddleware.
func newRateLimiter(ratePerSecond float64, burst int) echo.MiddlewareFunc {
	if ratePerSecond <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(ratePerSecond),
		Burst:     burst,
		ExpiresIn: rateLimiterExpiry,
	})
	// One token refills in 1/rate seconds.
	refill := time.Duration(float64(time.Second) / ratePerSecond)

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(_ echo.Context, err error) error {
			return apperrors.InternalError("rate limiter failed", err)
		},
		DenyHandler: func(_ echo.Context, _ string, _ error) error {
			return apperrors.RateLimitedError(refill)
		},
	})
}
