package market

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/orbit/internal/gateway"
	"github.com/hitoshi/orbit/internal/model"
)

// mockSource はSourceのテスト用実装。
type mockSource struct {
	summaryFn func(ctx context.Context, d *Descriptor, code string) gateway.Result[model.Summary]
	seriesFn  func(ctx context.Context, d *Descriptor, code, period string) gateway.Result[model.ChartSeries]
}

func (m *mockSource) Summary(ctx context.Context, d *Descriptor, code string) gateway.Result[model.Summary] {
	if m.summaryFn == nil {
		return okSummary(code)
	}
	return m.summaryFn(ctx, d, code)
}

func (m *mockSource) Series(ctx context.Context, d *Descriptor, code, period string) gateway.Result[model.ChartSeries] {
	if m.seriesFn == nil {
		return okSeries(code)
	}
	return m.seriesFn(ctx, d, code, period)
}

// mockCollector はmetrics.MetricsCollectorのテスト用実装。
type mockCollector struct {
	mu         sync.Mutex
	superseded int
	probes     map[bool]int
}

func (m *mockCollector) RecordGatewayRequest(service string, outcome string, statusCode int) {}
func (m *mockCollector) RecordGatewayLatency(service string, duration time.Duration)         {}
func (m *mockCollector) RecordSessionCheck(outcome string)                                   {}

func (m *mockCollector) RecordSupersededSelection(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.superseded++
}

func (m *mockCollector) RecordAvailabilityProbe(kind string, available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.probes == nil {
		m.probes = make(map[bool]int)
	}
	m.probes[available]++
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testDescriptor(probe bool) *Descriptor {
	return &Descriptor{
		Kind:              KindGlobalStock,
		Title:             "해외 주식",
		Resource:          "/data-collector-service/api/global-stock",
		CodeParam:         "stockCode",
		Subject:           "주식",
		ValueLabel:        "현재가",
		Decimals:          2,
		ProbeAvailability: probe,
		Instruments: []Instrument{
			{Code: "TSLA", Name: "테슬라", Market: "NAS"},
			{Code: "AAPL", Name: "애플", Market: "NAS"},
			{Code: "KO", Name: "코카콜라", Market: "NYS"},
		},
		Periods: []Period{
			{Key: "today", Label: "실시간"},
			{Key: "yesterday", Label: "어제"},
			{Key: "oneweek", Label: "1주일"},
		},
	}
}

func okSummary(code string) gateway.Result[model.Summary] {
	return gateway.Succeed(model.Summary{
		StockCode:    code,
		CurrentPrice: decimal.NewNullDecimal(decimal.RequireFromString("251.5")),
		ChangeRate:   decimal.NewNullDecimal(decimal.RequireFromString("1.234")),
		Timestamp:    "2024-05-01T09:30:00",
	})
}

func okSeries(code string) gateway.Result[model.ChartSeries] {
	return gateway.Succeed(model.ChartSeries{
		Labels: []string{"2024-05-01T09:00:00", "2024-05-01T09:05:00"},
		Datasets: []model.Dataset{{
			Label: code,
			Data:  []decimal.Decimal{decimal.RequireFromString("250.1"), decimal.RequireFromString("251.5")},
		}},
	})
}

func notFound[T any]() gateway.Result[T] {
	return gateway.Fail[T](&gateway.Failure{Kind: gateway.KindNotFound, Status: 404})
}

func serverError[T any]() gateway.Result[T] {
	return gateway.Fail[T](&gateway.Failure{Kind: gateway.KindServer, Status: 500})
}
