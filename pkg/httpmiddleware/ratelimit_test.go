package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func hit(h http.Handler, remoteAddr string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	req.RemoteAddr = remoteAddr
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// limited returns a handler whose limiter clock is controlled by the test.
func limited(cfg RateLimitConfig) (http.Handler, *rateLimiter, *time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newRateLimiter(cfg)
	rl.now = func() time.Time { return now }
	return rateLimitMiddleware(rl)(okHandler()), rl, &now
}

func TestRateLimit_UnderLimit(t *testing.T) {
	h, _, _ := limited(RateLimitConfig{Max: 5, Window: time.Minute})

	for i := range 5 {
		w := hit(h, "192.168.1.1:12345")
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, 4-i, atoi(t, w.Header().Get("X-RateLimit-Remaining")))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	h, _, _ := limited(RateLimitConfig{Max: 2, Window: time.Minute})

	for range 2 {
		require.Equal(t, http.StatusOK, hit(h, "10.0.0.1:9999").Code)
	}

	w := hit(h, "10.0.0.1:9999")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	// One token refills every 30s.
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"code":429,"message":"rate limit exceeded"}`, w.Body.String())
}

func TestRateLimit_Refill(t *testing.T) {
	h, _, now := limited(RateLimitConfig{Max: 2, Window: time.Minute})

	require.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1").Code)
	require.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1").Code)
	require.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:1").Code)

	*now = now.Add(30 * time.Second)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:1").Code)
}

func TestRateLimit_DifferentIPs(t *testing.T) {
	h, _, _ := limited(RateLimitConfig{Max: 1, Window: time.Minute})

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.2:1234").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:5678").Code)
}

func TestRateLimit_CustomKeyFunc(t *testing.T) {
	h, _, _ := limited(RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		KeyFunc: func(r *http.Request) string {
			return r.Header.Get("X-API-Key")
		},
	})

	assert.Equal(t, http.StatusOK, hit(h, "1.1.1.1:1", "X-API-Key", "key-a").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "2.2.2.2:1", "X-API-Key", "key-a").Code)
	assert.Equal(t, http.StatusOK, hit(h, "1.1.1.1:1", "X-API-Key", "key-b").Code)
}

func TestRateLimit_XForwardedFor(t *testing.T) {
	h, _, _ := limited(RateLimitConfig{Max: 1, Window: time.Minute})

	assert.Equal(t, http.StatusOK, hit(h, "192.168.1.1:4444", "X-Forwarded-For", "203.0.113.50, 70.41.3.18").Code)
	// Same first forwarded IP behind a different proxy address.
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "192.168.1.2:5555", "X-Forwarded-For", "203.0.113.50, 70.41.3.18").Code)
}

func TestRateLimit_CleanupEvictsIdleKeys(t *testing.T) {
	_, rl, now := limited(RateLimitConfig{Max: 1, Window: time.Minute})

	_, _, ok := rl.allow("a", *now)
	require.True(t, ok)
	_, _, ok = rl.allow("b", now.Add(50*time.Second))
	require.True(t, ok)

	rl.cleanup(now.Add(61 * time.Second))
	assert.NotContains(t, rl.entries, "a")
	assert.Contains(t, rl.entries, "b")
}

func atoi(t *testing.T, s string) int {
	t.Helper()
	n, err := strconv.Atoi(s)
	require.NoError(t, err)
	return n
}
