package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/radiusdt/game-ads/internal/config"
	"github.com/radiusdt/game-ads/internal/metrics"
	"go.uber.org/zap"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
})

func TestRequestIDAssignedAndEchoed(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
		t.Errorf("request id = %q, header = %q", seen, rec.Header().Get(RequestIDHeader))
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "abc-123" {
		t.Errorf("request id = %q, want %q", seen, "abc-123")
	}
}

func TestRecoveryHidesPanic(t *testing.T) {
	h := NewRecoveryMiddleware(zap.NewNop()).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("secret detail")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/banners", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if got := rec.Body.String(); got != `{"error":"internal server error"}` {
		t.Errorf("body = %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := NewCORSMiddleware(config.Default().CORS).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight reached the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/click", nil)
	req.Header.Set("Origin", "https://game.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow origin = %q, want *", got)
	}
}

func TestCORSExplicitOrigins(t *testing.T) {
	cfg := config.Default().CORS
	cfg.AllowedOrigins = []string{"https://game.example"}
	h := NewCORSMiddleware(cfg).Handler(ok)

	req := httptest.NewRequest("GET", "/api/banners", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("allow origin for unknown = %q, want empty", got)
	}

	req.Header.Set("Origin", "https://game.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://game.example" {
		t.Errorf("allow origin = %q", got)
	}
}

func TestRateLimitSeparatesEventTraffic(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:    true,
		EventRPS:   0.001,
		EventBurst: 1,
		MgmtRPS:    0.001,
		MgmtBurst:  1,
		PerIPRPS:   1000,
		PerIPBurst: 1000,
	}
	m := metrics.NewMetrics()
	rl := NewRateLimitMiddleware(cfg, zap.NewNop())
	rl.SetMetrics(m)
	h := rl.Handler(ok)

	do := func(path string) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("POST", path, nil))
		return rec.Code
	}

	if got := do("/api/impression"); got != http.StatusOK {
		t.Fatalf("first event = %d, want 200", got)
	}
	if got := do("/api/click"); got != http.StatusTooManyRequests {
		t.Errorf("second event = %d, want 429", got)
	}
	if got := do("/api/banners"); got != http.StatusOK {
		t.Errorf("mgmt after event exhaustion = %d, want 200", got)
	}
	if got := testutil.ToFloat64(m.RateLimitHits.WithLabelValues("event")); got != 1 {
		t.Errorf("event hits = %v, want 1", got)
	}
}

func TestRateLimitPerIP(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:    true,
		EventRPS:   1000,
		EventBurst: 1000,
		MgmtRPS:    1000,
		MgmtBurst:  1000,
		PerIPRPS:   0.001,
		PerIPBurst: 1,
	}
	h := NewRateLimitMiddleware(cfg, zap.NewNop()).Handler(ok)

	do := func(ip string) int {
		req := httptest.NewRequest("GET", "/api/banners", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if do("10.0.0.1") != http.StatusOK || do("10.0.0.2") != http.StatusOK {
		t.Fatal("first request per IP rejected")
	}
	if got := do("10.0.0.1"); got != http.StatusTooManyRequests {
		t.Errorf("second request = %d, want 429", got)
	}
}

func TestCleanupIPLimiters(t *testing.T) {
	rl := NewRateLimitMiddleware(config.Default().RateLimit, zap.NewNop())
	rl.getIPLimiter("1.2.3.4")
	rl.ipLimiters["1.2.3.4"].lastSeen = time.Now().Add(-2 * time.Hour)
	rl.getIPLimiter("5.6.7.8")

	if removed := rl.CleanupIPLimiters(time.Hour); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, ok := rl.ipLimiters["5.6.7.8"]; !ok {
		t.Error("active limiter removed")
	}
}

func TestMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	m := metrics.NewMetrics()
	r := chi.NewRouter()
	r.Use(NewMetricsMiddleware(m).Handler)
	r.Get("/edit-banner/{id}", ok)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/edit-banner/7", nil))

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/edit-banner/{id}", "200")); got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}
}
