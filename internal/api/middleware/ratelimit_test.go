package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cropadvisor/cropadvisor/internal/api/middleware"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitByIP_BlocksOverLimit(t *testing.T) {
	handler := middleware.RateLimitByIP(middleware.RateLimitConfig{
		RequestLimit: 3,
		WindowLength: time.Minute,
	})(okHandler())

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
		req.RemoteAddr = ip
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, send("10.0.0.1:12345").Code, "request %d should be allowed", i+1)
	}

	rec := send("10.0.0.1:12345")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Rate limit exceeded")
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// Another address has its own budget.
	assert.Equal(t, http.StatusOK, send("10.0.0.2:12345").Code)
}

func TestRateLimitByDevice_SeparatesDevicesBehindOneAddress(t *testing.T) {
	handler := middleware.RequestID(middleware.RateLimitByDevice(middleware.RateLimitConfig{
		RequestLimit: 2,
		WindowLength: 30 * time.Second,
	})(okHandler()))

	send := func(device string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/offline/sync", http.NoBody)
		req.RemoteAddr = "192.168.1.1:5555"
		if device != "" {
			req.Header.Set(middleware.HeaderDeviceID, device)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("dev-a"))
	assert.Equal(t, http.StatusOK, send("dev-a"))
	assert.Equal(t, http.StatusTooManyRequests, send("dev-a"))

	assert.Equal(t, http.StatusOK, send("dev-b"))

	// Without a device ID the address is the key.
	assert.Equal(t, http.StatusOK, send(""))
	assert.Equal(t, http.StatusOK, send(""))
	assert.Equal(t, http.StatusTooManyRequests, send(""))
}

func TestRateLimitConfigs(t *testing.T) {
	assert.Equal(t, 10, middleware.DownloadRateLimit.RequestLimit)
	assert.Equal(t, 30, middleware.RecommendationRateLimit.RequestLimit)
	assert.Equal(t, 100, middleware.StandardRateLimit.RequestLimit)
}
