package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"shopdesk-realtime/internal/domain/user"
	"shopdesk-realtime/internal/redis"
	"shopdesk-realtime/internal/services"
	shopdesk_errors "shopdesk-realtime/pkg/errors"
	"shopdesk-realtime/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func whoami(c *gin.Context) {
	identity, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.Status(http.StatusTeapot)
		return
	}
	c.String(http.StatusOK, identity.Name)
}

func TestAuthMiddleware(t *testing.T) {
	auth := services.NewAuthService("secret", time.Minute)
	token, err := auth.IssueAccessToken(user.Profile{ID: uuid.New(), Name: "Lan"})
	require.NoError(t, err)

	router := gin.New()
	router.Use(AuthMiddleware(auth))
	router.GET("/me", whoami)
	router.POST("/me", whoami)

	cases := []struct {
		name   string
		method string
		target string
		header string
		status int
	}{
		{"bearer header", http.MethodGet, "/me", "Bearer " + token, http.StatusOK},
		{"query token on GET", http.MethodGet, "/me?token=" + token, "", http.StatusOK},
		{"query token ignored on POST", http.MethodPost, "/me?token=" + token, "", http.StatusUnauthorized},
		{"missing", http.MethodGet, "/me", "", http.StatusUnauthorized},
		{"wrong scheme", http.MethodGet, "/me", "Basic " + token, http.StatusUnauthorized},
		{"invalid", http.MethodGet, "/me", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "Lan", w.Body.String())
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Header().Get("X-Request-Id"), 32)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "abc")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get("X-Request-Id"))

	for _, bad := range []string{"two words", "line\nbreak", strings.Repeat("a", 65)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-Id", bad)
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		got := w.Header().Get("X-Request-Id")
		assert.NotEqual(t, bad, got)
		assert.Len(t, got, 32)
	}
}

func TestErrorHandlerHidesServerFaults(t *testing.T) {
	router := gin.New()
	router.Use(ErrorHandler(logger.NewNop()))
	router.GET("/boom", func(c *gin.Context) { _ = c.Error(errors.New("pq: password authentication failed")) })
	router.GET("/gone", func(c *gin.Context) { _ = c.Error(fmt.Errorf("load order: %w", shopdesk_errors.ErrNotFound)) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
	assert.Contains(t, w.Body.String(), "internal error")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/gone", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestGuestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := redis.NewRateLimiter(client, redis.RateLimitConfig{GuestLimit: 2, Window: time.Minute})
	router := gin.New()
	router.POST("/guest", GuestRateLimitMiddleware(limiter), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	hit := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/guest", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusNoContent, hit().Code)
	w := hit()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusTooManyRequests, hit().Code)
}

func TestNilLimiterPassesThrough(t *testing.T) {
	router := gin.New()
	router.POST("/m", MessageRateLimitMiddleware(nil), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/m", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
