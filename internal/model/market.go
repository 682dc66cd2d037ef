package model

import "github.com/shopspring/decimal"

// Summary は為替・株価の最新スナップショットを表す。
// 為替はexchangeRate、株価はcurrentPriceに値が入る。
type Summary struct {
	CurrencyCode string              `json:"currencyCode,omitempty"`
	CurrencyName string              `json:"currencyName,omitempty"`
	StockCode    string              `json:"stockCode,omitempty"`
	StockName    string              `json:"stockName,omitempty"`
	ExchangeRate decimal.NullDecimal `json:"exchangeRate"`
	CurrentPrice decimal.NullDecimal `json:"currentPrice"`
	ChangeRate   decimal.NullDecimal `json:"changeRate"`
	Timestamp    string              `json:"timestamp"`
}

// Price は為替レートまたは現在値のうち値のある方を返す。
func (s Summary) Price() decimal.NullDecimal {
	if s.ExchangeRate.Valid {
		return s.ExchangeRate
	}
	return s.CurrentPrice
}

// Code は通貨ペアまたは銘柄コードを返す。
func (s Summary) Code() string {
	if s.CurrencyCode != "" {
		return s.CurrencyCode
	}
	return s.StockCode
}

// Name は通貨ペア名または銘柄名を返す。
func (s Summary) Name() string {
	if s.CurrencyName != "" {
		return s.CurrencyName
	}
	return s.StockName
}

// ChartSeries はチャートライブラリにそのまま渡す時系列データ。
type ChartSeries struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Dataset はチャートの系列1本を表す。
type Dataset struct {
	Label string            `json:"label"`
	Data  []decimal.Decimal `json:"data"`
}
