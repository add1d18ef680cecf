package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestTokenBucketLimits(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewTokenBucket(3, 3).Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func() int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit())
	}
	assert.Equal(t, http.StatusTooManyRequests, hit())
}

func TestTokenBucketIsPerIP(t *testing.T) {
	limiter := NewTokenBucket(1, 1)
	assert.True(t, limiter.allow("10.0.0.1"))
	assert.False(t, limiter.allow("10.0.0.1"))
	assert.True(t, limiter.allow("10.0.0.2"), "a second caller has its own bucket")
}

func TestTokenBucketEvictsStaleBuckets(t *testing.T) {
	limiter := NewTokenBucket(1, 60)
	limiter.allow("10.0.0.1")

	// Age the bucket past the stale window and force a sweep.
	limiter.mu.Lock()
	limiter.state["10.0.0.1"].last = time.Now().Add(-2 * staleAfter)
	limiter.sweepAt = time.Now().Add(-time.Minute)
	limiter.mu.Unlock()

	limiter.allow("10.0.0.2")

	limiter.mu.Lock()
	_, ok := limiter.state["10.0.0.1"]
	limiter.mu.Unlock()
	assert.False(t, ok, "idle buckets are dropped")
}
