package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/migratesafely/membership_server/config"
	"github.com/migratesafely/membership_server/internal/pkg/response"
)

func TestIPRateLimiter_Allow(t *testing.T) {
	limiter := NewIPRateLimiter(config.RateLimitConfig{RequestsPerMinute: 60, Burst: 2})
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))

	// 不同 IP 独立计数
	assert.True(t, limiter.Allow("10.0.0.2"))

	// 一秒补充一个令牌
	now = now.Add(time.Second)
	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))
}

func TestIPRateLimiter_EvictsIdle(t *testing.T) {
	limiter := NewIPRateLimiter(config.RateLimitConfig{})
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.Allow("10.0.0.1")
	now = now.Add(limiterIdleTTL + time.Minute)
	limiter.Allow("10.0.0.2")

	assert.Len(t, limiter.visitors, 1)
	assert.Contains(t, limiter.visitors, "10.0.0.2")
}

func TestIPRateLimiter_SweepsAtMostOncePerTTL(t *testing.T) {
	limiter := NewIPRateLimiter(config.RateLimitConfig{})
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	limiter.now = func() time.Time { return now }

	limiter.Allow("10.0.0.1")
	now = start.Add(5 * time.Minute)
	limiter.Allow("10.0.0.2")

	now = start.Add(limiterIdleTTL + time.Second)
	limiter.Allow("10.0.0.3")
	assert.NotContains(t, limiter.visitors, "10.0.0.1")
	assert.Len(t, limiter.visitors, 2)

	// 10.0.0.2 已闲置超过 TTL，但距上次清理不足一个周期
	now = start.Add(15*time.Minute + 2*time.Second)
	limiter.Allow("10.0.0.4")
	assert.Contains(t, limiter.visitors, "10.0.0.2")
	assert.Len(t, limiter.visitors, 3)

	now = start.Add(20*time.Minute + 2*time.Second)
	limiter.Allow("10.0.0.5")
	assert.Len(t, limiter.visitors, 2)
	assert.Contains(t, limiter.visitors, "10.0.0.4")
	assert.Contains(t, limiter.visitors, "10.0.0.5")
}

func TestIPRateLimiter_Middleware(t *testing.T) {
	limiter := NewIPRateLimiter(config.RateLimitConfig{RequestsPerMinute: 1, Burst: 1})

	router := gin.New()
	router.GET("/validate", limiter.Middleware(), func(c *gin.Context) {
		response.Success(c, nil)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/validate", nil))
	assert.Equal(t, response.CodeSuccess, parseResponse(t, w).Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/validate", nil))
	assert.Equal(t, response.CodeRateLimited, parseResponse(t, w).Code)
}
