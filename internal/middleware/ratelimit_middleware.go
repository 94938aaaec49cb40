package middleware

import (
	"context"
	"net/http"
	"strconv"

	"shopdesk-realtime/internal/redis"
	"shopdesk-realtime/internal/services"
	"shopdesk-realtime/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type limitFunc func(ctx context.Context, key string) (*redis.RateLimitResult, error)

// MessageRateLimitMiddleware limits message sends per identity. It runs
// after AuthMiddleware.
func MessageRateLimitMiddleware(limiter *redis.RateLimiter) gin.HandlerFunc {
	if limiter == nil {
		return passThrough
	}
	return userLimit(limiter.AllowMessage, "message rate limit exceeded")
}

// SignalRateLimitMiddleware limits call signal and status relays.
func SignalRateLimitMiddleware(limiter *redis.RateLimiter) gin.HandlerFunc {
	if limiter == nil {
		return passThrough
	}
	return userLimit(limiter.AllowSignal, "call signal rate limit exceeded")
}

// GuestRateLimitMiddleware limits the unauthenticated guest desk by
// client IP.
func GuestRateLimitMiddleware(limiter *redis.RateLimiter) gin.HandlerFunc {
	if limiter == nil {
		return passThrough
	}
	return func(c *gin.Context) {
		enforce(c, limiter.AllowGuest, c.ClientIP(), "guest rate limit exceeded")
	}
}

func userLimit(allow limitFunc, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := services.IdentityFromContext(c.Request.Context())
		if !ok {
			c.Next()
			return
		}
		enforce(c, allow, identity.ID.String(), message)
	}
}

func enforce(c *gin.Context, allow limitFunc, key, message string) {
	result, err := allow(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("rate limit error", "INTERNAL_ERROR"))
		c.Abort()
		return
	}

	setRateLimitHeaders(c, result)

	if !result.Allowed {
		c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse(message, "RATE_LIMITED"))
		c.Abort()
		return
	}

	c.Next()
}

func passThrough(c *gin.Context) { c.Next() }

// setRateLimitHeaders sets standard rate limit response headers
func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
