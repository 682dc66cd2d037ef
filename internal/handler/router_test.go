package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/orbit/internal/metrics"
	"github.com/hitoshi/orbit/internal/middleware"
	"github.com/hitoshi/orbit/internal/view"
)

func TestRouter_Health(t *testing.T) {
	w := serve(NewRouter(testDeps(t)), httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("/health はCookieを発行しない")
	}
}

func TestRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.NewCollector(reg)
	deps := testDeps(t)
	deps.Metrics = metrics.Handler(reg)

	w := serve(NewRouter(deps), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_SecurityHeadersAndRequestID(t *testing.T) {
	w := serve(NewRouter(testDeps(t)), httptest.NewRequest(http.MethodGet, "/board", nil))

	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("X-Content-Type-Options がありません")
	}
	if w.Header().Get("Content-Security-Policy") == "" {
		t.Error("Content-Security-Policy がありません")
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID がありません")
	}
}

func TestRouter_IssuesClientAndCSRFCookies(t *testing.T) {
	w := serve(NewRouter(testDeps(t)), httptest.NewRequest(http.MethodGet, "/", nil))

	names := map[string]bool{}
	for _, c := range w.Result().Cookies() {
		names[c.Name] = true
	}
	if !names[middleware.ClientIDCookieName] || !names[middleware.CSRFCookieName] {
		t.Errorf("cookies = %v, want %s and %s", names, middleware.ClientIDCookieName, middleware.CSRFCookieName)
	}
}

func TestRouter_RejectsPostWithoutCSRFToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(url.Values{"email": {"a@example.com"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := serve(NewRouter(testDeps(t)), req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestRouter_NotFoundPage(t *testing.T) {
	w := serve(NewRouter(testDeps(t)), httptest.NewRequest(http.MethodGet, "/no/such/page", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if !strings.Contains(w.Body.String(), "페이지를 찾을 수 없습니다.") {
		t.Error("404ページが描画されていません")
	}
}

func TestRouter_CORSOnlyOnAPI(t *testing.T) {
	router := NewRouter(testDeps(t))

	req := httptest.NewRequest(http.MethodGet, "/api/market/forex", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := serve(router, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("/api: Access-Control-Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/board", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w = serve(router, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("/board: Access-Control-Allow-Origin = %q, want empty", got)
	}
}

func TestRouter_WriteRateLimit(t *testing.T) {
	deps := testDeps(t)
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(100, 2), discardLogger())
	t.Cleanup(rl.Stop)
	deps.RateLimiter = rl
	router := NewRouter(deps)

	var last int
	for i := 0; i < 3; i++ {
		w := serve(router, postForm("/login", url.Values{"email": {"a@example.com"}, "password": {"password1"}}))
		last = w.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("3回目の書き込み: status = %d, want %d", last, http.StatusTooManyRequests)
	}
}

func TestRouter_StaticFiles(t *testing.T) {
	deps := testDeps(t)
	deps.Static = view.StaticHandler()

	w := serve(NewRouter(deps), httptest.NewRequest(http.MethodGet, "/static/market.js", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}
