package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"
)

// rateLimiter counts requests per client IP in fixed windows.
type rateLimiter struct {
	max    int
	window time.Duration
	hits   *cache.Cache
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		max:    max,
		window: window,
		hits:   cache.New(window, 2*window),
	}
}

// hit records a request for key and returns the number of requests seen in the current window.
func (rl *rateLimiter) hit(key string) int {
	for {
		if err := rl.hits.Add(key, 1, rl.window); err == nil {
			return 1
		}
		// IncrementInt keeps the expiration set by Add, which closes the window.
		if n, err := rl.hits.IncrementInt(key, 1); err == nil {
			return n
		}
		// the window expired between Add and IncrementInt
	}
}

// middleware limits each route it is applied to separately.
func (rl *rateLimiter) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if rl.max <= 0 {
				return next(ctx)
			}
			n := rl.hit(ctx.Path() + "|" + ctx.RealIP())
			remaining := rl.max - n
			if remaining < 0 {
				remaining = 0
			}
			h := ctx.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(rl.max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if n > rl.max {
				return errTooManyRequests
			}
			return next(ctx)
		}
	}
}
