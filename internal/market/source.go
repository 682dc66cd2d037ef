package market

import (
	"context"
	"net/http"
	"net/url"

	"github.com/hitoshi/orbit/internal/gateway"
	"github.com/hitoshi/orbit/internal/model"
)

// Source はサマリーと時系列の取得元。
type Source interface {
	Summary(ctx context.Context, d *Descriptor, code string) gateway.Result[model.Summary]
	Series(ctx context.Context, d *Descriptor, code, period string) gateway.Result[model.ChartSeries]
}

// GatewaySource はdata-collector-serviceから取得するSource。
type GatewaySource struct {
	client *gateway.Client
}

// NewGatewaySource はGatewaySourceを生成する。
func NewGatewaySource(client *gateway.Client) *GatewaySource {
	return &GatewaySource{client: client}
}

// Summary は {resource}/summary?{code_param}=code を取得する。
func (s *GatewaySource) Summary(ctx context.Context, d *Descriptor, code string) gateway.Result[model.Summary] {
	return gateway.Do[model.Summary](ctx, s.client, gateway.Request{
		Method: http.MethodGet,
		Path:   d.Resource + "/summary",
		Query:  url.Values{d.CodeParam: {code}},
	})
}

// Series は {resource}/{period}?{code_param}=code を取得する。
func (s *GatewaySource) Series(ctx context.Context, d *Descriptor, code, period string) gateway.Result[model.ChartSeries] {
	return gateway.Do[model.ChartSeries](ctx, s.client, gateway.Request{
		Method: http.MethodGet,
		Path:   d.Resource + "/" + url.PathEscape(period),
		Query:  url.Values{d.CodeParam: {code}},
	})
}
