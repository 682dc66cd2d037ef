// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ゲートウェイクライアントやセッション・マーケット層から利用する。
type MetricsCollector interface {
	RecordGatewayRequest(service string, outcome string, statusCode int)
	RecordGatewayLatency(service string, duration time.Duration)
	RecordSupersededSelection(kind string)
	RecordSessionCheck(outcome string)
	RecordAvailabilityProbe(kind string, available bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	gatewayRequests *prometheus.CounterVec
	gatewayLatency  *prometheus.HistogramVec
	superseded      *prometheus.CounterVec
	sessionChecks   *prometheus.CounterVec
	availability    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orbit_gateway_requests_total",
			Help: "ゲートウェイへのリクエスト数（サービス・結果・ステータス別）",
		}, []string{"service", "outcome", "status_code"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orbit_gateway_latency_seconds",
			Help:    "ゲートウェイ呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"service"}),
		superseded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orbit_market_superseded_total",
			Help: "新しい選択で破棄された古いマーケット取得の数",
		}, []string{"kind"}),
		sessionChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orbit_session_checks_total",
			Help: "セッション確認の結果別の数",
		}, []string{"outcome"}),
		availability: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orbit_market_availability_probes_total",
			Help: "銘柄データ有無の事前確認の結果別の数",
		}, []string{"kind", "available"}),
	}

	reg.MustRegister(
		c.gatewayRequests,
		c.gatewayLatency,
		c.superseded,
		c.sessionChecks,
		c.availability,
	)

	return c
}

// RecordGatewayRequest はゲートウェイ呼び出しの結果を記録する。
// ネットワークエラーなどステータスがない場合は0を渡す。
func (c *Collector) RecordGatewayRequest(service string, outcome string, statusCode int) {
	c.gatewayRequests.WithLabelValues(service, outcome, strconv.Itoa(statusCode)).Inc()
}

// RecordGatewayLatency はゲートウェイ呼び出しのレイテンシを記録する。
func (c *Collector) RecordGatewayLatency(service string, duration time.Duration) {
	c.gatewayLatency.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordSupersededSelection は破棄された古い選択を記録する。
func (c *Collector) RecordSupersededSelection(kind string) {
	c.superseded.WithLabelValues(kind).Inc()
}

// RecordSessionCheck はセッション確認の結果を記録する。
func (c *Collector) RecordSessionCheck(outcome string) {
	c.sessionChecks.WithLabelValues(outcome).Inc()
}

// RecordAvailabilityProbe は銘柄の事前確認結果を記録する。
func (c *Collector) RecordAvailabilityProbe(kind string, available bool) {
	c.availability.WithLabelValues(kind, strconv.FormatBool(available)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
