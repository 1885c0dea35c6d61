package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wallet-ledger/internal/adapter/http/middleware"
	redisStore "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports/mocks"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func newRateLimitStore(t *testing.T) *redisStore.RateLimitStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return redisStore.NewRateLimitStore(client)
}

// routerWithLimiter authenticates callers from the X-Test-Principal
// header so tests can vary the identity.
func routerWithLimiter(limiter gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/test", func(c *gin.Context) {
		if id := c.GetHeader("X-Test-Principal"); id != "" {
			c.Set(middleware.CtxPrincipal, domain.Principal{ID: uuid.MustParse(id), Role: domain.RoleMerchant})
		}
		c.Next()
	}, limiter, func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	return r
}

func get(r *gin.Engine, principal string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/test", nil)
	if principal != "" {
		req.Header.Set("X-Test-Principal", principal)
	}
	r.ServeHTTP(w, req)
	return w
}

var testRule = middleware.RateLimitRule{Limit: 3, Window: time.Minute}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	router := routerWithLimiter(middleware.RateLimiter(newRateLimitStore(t), "test", testRule, zerolog.Nop()))

	for i := 0; i < 3; i++ {
		w := get(router, "")
		assert.Equal(t, 200, w.Code, "request %d should succeed", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	router := routerWithLimiter(middleware.RateLimiter(newRateLimitStore(t), "test", testRule, zerolog.Nop()))

	for i := 0; i < 3; i++ {
		assert.Equal(t, 200, get(router, "").Code)
	}

	w := get(router, "")
	assert.Equal(t, 429, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_001")
}

func TestRateLimiter_KeysByPrincipal(t *testing.T) {
	router := routerWithLimiter(middleware.RateLimiter(newRateLimitStore(t), "test", testRule, zerolog.Nop()))
	merchantA, merchantB := uuid.NewString(), uuid.NewString()

	for i := 0; i < 3; i++ {
		assert.Equal(t, 200, get(router, merchantA).Code)
	}
	assert.Equal(t, 429, get(router, merchantA).Code)

	// independent counter
	assert.Equal(t, 200, get(router, merchantB).Code)
}

func TestRateLimiter_DegradedModeAllows(t *testing.T) {
	ctrl := gomock.NewController(t)
	limiter := mocks.NewMockRateLimiter(ctrl)
	limiter.EXPECT().Allow(gomock.Any(), gomock.Any(), int64(3), time.Minute).Return(nil, errors.New("redis down"))

	router := routerWithLimiter(middleware.RateLimiter(limiter, "test", testRule, zerolog.Nop()))
	assert.Equal(t, 200, get(router, "").Code)
}

func TestDefaultRateLimitRules(t *testing.T) {
	rules := middleware.DefaultRateLimitRules()
	assert.Equal(t, int64(600), rules["webhook"].Limit)
	assert.Equal(t, int64(60), rules["qr_redeem"].Limit)
	assert.Equal(t, int64(20), rules["eft_initiate"].Limit)
	assert.Equal(t, time.Minute, rules["api"].Window)
}
