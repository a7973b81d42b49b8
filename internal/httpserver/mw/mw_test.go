package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/MrSnakeDoc/nekogallery/internal/logger"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func fromIP(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/download", nil)
	req.RemoteAddr = ip + ":4242"
	return req
}

func TestRateLimitPerIP(t *testing.T) {
	h := RateLimit(RateLimitConfig{Burst: 2, RefillPerIPPerMin: 1})(ok)

	for i := 0; i < 2; i++ {
		rec := serve(h, fromIP("10.0.0.1"))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := serve(h, fromIP("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = serve(h, fromIP("10.0.0.2"))
	assert.Equal(t, http.StatusOK, rec.Code, "other clients keep their own bucket")
}

func TestLimiterRefills(t *testing.T) {
	l := newLimiter(RateLimitConfig{Burst: 1, RefillPerIPPerMin: 60})
	now := time.Now()

	allowed, _, _ := l.allow("ip", now)
	assert.True(t, allowed)

	allowed, _, retry := l.allow("ip", now)
	assert.False(t, allowed)
	assert.Equal(t, 1, retry)

	allowed, _, _ = l.allow("ip", now.Add(time.Second))
	assert.True(t, allowed)
}

func TestLimiterSweepsIdleVisitors(t *testing.T) {
	l := newLimiter(RateLimitConfig{Burst: 1, RefillPerIPPerMin: 1, IdleTTL: time.Minute, SweepInterval: time.Minute})
	now := time.Now()

	l.allow("a", now)
	l.allow("b", now.Add(2*time.Minute))

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.visitors, "a")
	assert.Contains(t, l.visitors, "b")
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://gallery.example"})(ok)

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.Header.Set("Origin", "https://gallery.example")
	rec := serve(h, req)
	assert.Equal(t, "https://gallery.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))

	req = httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = serve(h, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"https://gallery.example"})(ok)

	req := httptest.NewRequest(http.MethodOptions, "/api/history", nil)
	req.Header.Set("Origin", "https://gallery.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	rec := serve(h, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://gallery.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.MethodDelete, rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))

	req = httptest.NewRequest(http.MethodOptions, "/api/history", nil)
	req.Header.Set("Origin", "https://gallery.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec = serve(h, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORSExposesDownloadHeaders(t *testing.T) {
	h := CORS([]string{"*"})(ok)

	req := httptest.NewRequest(http.MethodGet, "/download", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	rec := serve(h, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Content-Disposition, Retry-After", rec.Header().Get("Access-Control-Expose-Headers"))
}

func TestCORSDisabled(t *testing.T) {
	h := CORS(nil)(ok)

	req := httptest.NewRequest(http.MethodOptions, "/api/history", nil)
	req.Header.Set("Origin", "https://gallery.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := serve(h, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAllowOnlyCIDRS(t *testing.T) {
	h := AllowOnlyCIDRS([]string{"192.168.1.0/24", "10.0.0.5"}, false, logger.NewNop())(ok)

	assert.Equal(t, http.StatusOK, serve(h, fromIP("192.168.1.20")).Code)
	assert.Equal(t, http.StatusOK, serve(h, fromIP("10.0.0.5")).Code)
	assert.Equal(t, http.StatusForbidden, serve(h, fromIP("10.0.0.6")).Code)

	req := fromIP("10.0.0.6")
	req.Header.Set("X-Forwarded-For", "192.168.1.20")
	assert.Equal(t, http.StatusForbidden, serve(h, req).Code, "proxy headers ignored unless trusted")
}

func TestEnforceHost(t *testing.T) {
	h := EnforceHost([]string{"gallery.local", "*.example.com"}, logger.NewNop())(ok)

	for host, want := range map[string]int{
		"gallery.local":      http.StatusOK,
		"ops.example.com":    http.StatusOK,
		"gallery.local:8080": http.StatusOK,
		"evil.test":          http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/infra", nil)
		req.Host = host
		assert.Equal(t, want, serve(h, req).Code, host)
	}
}
