package server

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/MeKo-Tech/mathocr/internal/ocr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		origin     string
		method     string
		wantStatus int
		wantNext   bool
	}{
		{"get with wildcard", "*", http.MethodGet, http.StatusTeapot, true},
		{"post with origin", "https://example.com", http.MethodPost, http.StatusTeapot, true},
		{"preflight", "*", http.MethodOptions, http.StatusOK, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Server{cfg: Config{CORSOrigin: tt.origin}}
			called := false
			h := s.corsMiddleware("/x", func(w http.ResponseWriter, _ *http.Request) {
				called = true
				w.WriteHeader(http.StatusTeapot)
			})

			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(tt.method, "/x", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantNext, called)
			assert.Equal(t, tt.origin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
		})
	}
}

func TestPreflightOnDetect(t *testing.T) {
	s := newTestServer(t, ocr.NewStaticEngine(), testOptions{corsOrigin: "https://app.example"})
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/detectar", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitMiddleware_TooManyRequests(t *testing.T) {
	s := newTestServer(t, ocr.NewStaticEngine("1+1"), testOptions{
		rateLimit: RateLimitConfig{Enabled: true, RequestsPerMinute: 1},
	})
	h := s.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, uploadRequest(t, "file", pngBytes(t)))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, uploadRequest(t, "file", pngBytes(t)))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "minute", w.Header().Get("X-RateLimit-Type"))

	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retry, 1)
	assert.LessOrEqual(t, retry, 60)
	assert.Contains(t, decodeBody(t, w)["detail"], "rate limit exceeded")

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code, "health is not rate limited")
}

func TestRateLimitMiddleware_Quota(t *testing.T) {
	w := httptest.NewRecorder()
	handleRateLimitError(w, &QuotaExceededError{
		Kind:   "data",
		Limit:  10,
		Used:   10,
		Resets: time.Now().Add(90 * time.Second),
	})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "data", w.Header().Get("X-Quota-Type"))
	assert.Equal(t, "10", w.Header().Get("X-Quota-Used"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, "1", retryAfterSeconds(0))
	assert.Equal(t, "1", retryAfterSeconds(-time.Second))
	assert.Equal(t, "2", retryAfterSeconds(1100*time.Millisecond))
	assert.Equal(t, "60", retryAfterSeconds(time.Minute))
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded list", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.2:1234", "203.0.113.5"},
		{"forwarded single", map[string]string{"X-Forwarded-For": " 203.0.113.6 "}, "10.0.0.2:1234", "203.0.113.6"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "10.0.0.2:1234", "198.51.100.7"},
		{"remote addr", nil, "192.0.2.1:5555", "192.0.2.1"},
		{"remote without port", nil, "192.0.2.9", "192.0.2.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(r))
		})
	}
}
