package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimiter_PerSessionBuckets(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	r := gin.New()
	r.PUT("/sessions/:session_id/answers", rl.Middleware(), NoStore(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	hit := func(session string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/sessions/"+session+"/answers", nil))
		return w
	}

	assert.Equal(t, http.StatusNoContent, hit("a").Code)
	assert.Equal(t, "no-store", hit("a").Header().Get("Cache-Control"))
	assert.Equal(t, http.StatusTooManyRequests, hit("a").Code)

	// Other sessions have their own bucket.
	assert.Equal(t, http.StatusNoContent, hit("b").Code)

	now = now.Add(time.Minute)
	assert.Equal(t, http.StatusNoContent, hit("a").Code)
}

func TestRateLimiter_SweepsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("a"))
	now = now.Add(10 * time.Minute)
	assert.True(t, rl.allow("b"))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.buckets, "a")
	assert.Contains(t, rl.buckets, "b")
}
