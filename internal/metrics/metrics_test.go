package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は名前とラベル値が一致するメトリクスを返す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	return nil
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordGatewayRequest_IncrementsCounterWithLabels はゲートウェイ呼び出し数がラベル別に増加することを検証する。
func TestRecordGatewayRequest_IncrementsCounterWithLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGatewayRequest("user-service", "ok", 200)
	c.RecordGatewayRequest("user-service", "ok", 200)
	c.RecordGatewayRequest("data-collector-service", "not_found", 404)

	m := findMetric(t, reg, "orbit_gateway_requests_total", map[string]string{
		"service": "user-service", "outcome": "ok", "status_code": "200",
	})
	if m == nil {
		t.Fatal("orbit_gateway_requests_total{service=user-service} not found")
	}
	if v := m.GetCounter().GetValue(); v != 2 {
		t.Errorf("requests(user-service) = %v, want 2", v)
	}

	m = findMetric(t, reg, "orbit_gateway_requests_total", map[string]string{
		"service": "data-collector-service", "outcome": "not_found", "status_code": "404",
	})
	if m == nil {
		t.Fatal("orbit_gateway_requests_total{service=data-collector-service} not found")
	}
	if v := m.GetCounter().GetValue(); v != 1 {
		t.Errorf("requests(data-collector-service) = %v, want 1", v)
	}
}

// TestRecordGatewayLatency_ObservesHistogram はレイテンシのヒストグラムに値が記録されることを検証する。
func TestRecordGatewayLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGatewayLatency("api", 1500*time.Millisecond)
	c.RecordGatewayLatency("api", 600*time.Millisecond)

	m := findMetric(t, reg, "orbit_gateway_latency_seconds", map[string]string{"service": "api"})
	if m == nil {
		t.Fatal("orbit_gateway_latency_seconds not found")
	}
	h := m.GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
	}
	if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
		t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
	}
}

// TestRecordSupersededSelection_IncrementsCounter は破棄された選択のカウンタが増加することを検証する。
func TestRecordSupersededSelection_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSupersededSelection("forex")

	m := findMetric(t, reg, "orbit_market_superseded_total", map[string]string{"kind": "forex"})
	if m == nil {
		t.Fatal("orbit_market_superseded_total not found")
	}
	if v := m.GetCounter().GetValue(); v != 1 {
		t.Errorf("superseded = %v, want 1", v)
	}
}

// TestRecordSessionCheck_IncrementsCounter はセッション確認のカウンタが結果別に増加することを検証する。
func TestRecordSessionCheck_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionCheck("logged_in")
	c.RecordSessionCheck("logged_out")
	c.RecordSessionCheck("logged_out")

	m := findMetric(t, reg, "orbit_session_checks_total", map[string]string{"outcome": "logged_out"})
	if m == nil {
		t.Fatal("orbit_session_checks_total not found")
	}
	if v := m.GetCounter().GetValue(); v != 2 {
		t.Errorf("session_checks(logged_out) = %v, want 2", v)
	}
}

// TestRecordAvailabilityProbe_IncrementsCounter は事前確認のカウンタが増加することを検証する。
func TestRecordAvailabilityProbe_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAvailabilityProbe("global-stock", false)

	m := findMetric(t, reg, "orbit_market_availability_probes_total", map[string]string{
		"kind": "global-stock", "available": "false",
	})
	if m == nil {
		t.Fatal("orbit_market_availability_probes_total not found")
	}
	if v := m.GetCounter().GetValue(); v != 1 {
		t.Errorf("availability_probes = %v, want 1", v)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat はハンドラーがPrometheus形式で応答することを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordSessionCheck("logged_in")

	handler := Handler(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "orbit_session_checks_total") {
		t.Error("response should contain orbit_session_checks_total metric")
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はCollectorがインターフェースを満たすことを検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	var _ MetricsCollector = (*Collector)(nil)
}

// TestMultipleCollectors_IndependentRegistries は別レジストリのCollectorが干渉しないことを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	_ = NewCollector(reg2)

	c1.RecordSessionCheck("logged_in")

	if m := findMetric(t, reg2, "orbit_session_checks_total", map[string]string{"outcome": "logged_in"}); m != nil {
		t.Error("reg2 should not contain metrics recorded on reg1")
	}
}
