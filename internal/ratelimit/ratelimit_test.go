package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/remitwise/internal/metrics"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newLimiter(t *testing.T, cfg Config) (*Limiter, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	l := New(cfg).WithClock(clk.now)
	t.Cleanup(l.Stop)
	return l, clk
}

func TestLimiter_BurstThenRefill(t *testing.T) {
	l, clk := newLimiter(t, Config{RequestsPerMinute: 60, BurstSize: 5})

	for i := 0; i < 5; i++ {
		ok, _ := l.Allow("k")
		require.True(t, ok, "request %d within burst", i)
	}
	ok, wait := l.Allow("k")
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	clk.advance(time.Second)
	ok, _ = l.Allow("k")
	assert.True(t, ok)
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l, _ := newLimiter(t, Config{RequestsPerMinute: 60, BurstSize: 1})

	ok, _ := l.Allow("a")
	assert.True(t, ok)
	ok, _ = l.Allow("a")
	assert.False(t, ok)
	ok, _ = l.Allow("b")
	assert.True(t, ok)
}

func TestLimiter_Disabled(t *testing.T) {
	l, _ := newLimiter(t, Config{RequestsPerMinute: 0})
	for i := 0; i < 100; i++ {
		ok, _ := l.Allow("k")
		require.True(t, ok)
	}
	assert.Equal(t, 0, l.Len())
}

func TestLimiter_EvictIdle(t *testing.T) {
	l, clk := newLimiter(t, Config{RequestsPerMinute: 60, BurstSize: 2, IdleTTL: time.Minute})
	l.Allow("old")
	clk.advance(90 * time.Second)
	l.Allow("fresh")

	l.evictIdle()
	assert.Equal(t, 1, l.Len())
}

func TestDefaultConfig(t *testing.T) {
	assert.Equal(t, 20, DefaultConfig(120).BurstSize)
	assert.Equal(t, 5, DefaultConfig(10).BurstSize)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l, _ := newLimiter(t, Config{RequestsPerMinute: 30, BurstSize: 1})

	r := gin.New()
	r.Use(l.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(sender string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if sender != "" {
			req.Header.Set(SenderHeader, sender)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	before := testutil.ToFloat64(metrics.RateLimitedTotal.WithLabelValues("sender"))

	assert.Equal(t, http.StatusOK, do("alice").Code)
	w := do("alice")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RateLimitedTotal.WithLabelValues("sender")))

	// Another sender, and the anonymous IP bucket, are unaffected.
	assert.Equal(t, http.StatusOK, do("bob").Code)
	assert.Equal(t, http.StatusOK, do("").Code)
}
