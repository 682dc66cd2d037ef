package market

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/orbit/internal/model"
)

// Placeholder は値がない場合の表示。
const Placeholder = "-"

// changeDecimals は変動率の小数桁数。
const changeDecimals = 2

// Direction は変動の向き。
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionFlat Direction = "flat"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t.In(time.Local), true
		}
	}
	return time.Time{}, false
}

// SummaryView は要約パネルの表示データ。
type SummaryView struct {
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	ValueLabel string    `json:"valueLabel"`
	Price      string    `json:"price"`
	ChangeRate string    `json:"changeRate"`
	Direction  Direction `json:"direction"`
	Timestamp  string    `json:"timestamp"`
}

// ChartView はチャート描画用のデータ。系列は選択中の銘柄1本だけ。
type ChartView struct {
	Labels   []string      `json:"labels"`
	Datasets []DatasetView `json:"datasets"`
}

// DatasetView はチャートの系列。
type DatasetView struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

// FormatPrice は値を指定桁数で表示する。nullなら"-"。
func FormatPrice(v decimal.NullDecimal, decimals int32) string {
	if !v.Valid {
		return Placeholder
	}
	return v.Decimal.StringFixed(decimals)
}

// FormatChange は変動率を"+1.23%"の形式にし、向きを返す。
func FormatChange(v decimal.NullDecimal) (string, Direction) {
	if !v.Valid {
		return Placeholder, DirectionFlat
	}
	// 向きは丸める前の値で決める。0.004は"+0.00%"で上昇になる
	s := v.Decimal.Abs().StringFixed(changeDecimals) + "%"
	switch v.Decimal.Sign() {
	case 1:
		return "+" + s, DirectionUp
	case -1:
		return "-" + s, DirectionDown
	default:
		return s, DirectionFlat
	}
}

// FormatLabel はチャートのラベルを"15:04"にする。解釈できなければそのまま返す。
func FormatLabel(raw string) string {
	if t, ok := parseTime(raw); ok {
		return t.Format("15:04")
	}
	return raw
}

// FormatTimestamp は更新時刻を"2006-01-02 15:04"にする。
func FormatTimestamp(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return Placeholder
	}
	if t, ok := parseTime(raw); ok {
		return t.Format("2006-01-02 15:04")
	}
	return raw
}

// ProjectSummary はバックエンドのサマリーを表示データに変換する。
// 銘柄名はカタログの表記を優先する。
func ProjectSummary(d *Descriptor, in Instrument, s model.Summary) SummaryView {
	name := in.Name
	if name == "" {
		name = s.Name()
	}
	change, dir := FormatChange(s.ChangeRate)
	return SummaryView{
		Code:       in.Code,
		Name:       name,
		ValueLabel: d.ValueLabel,
		Price:      FormatPrice(s.Price(), d.Decimals),
		ChangeRate: change,
		Direction:  dir,
		Timestamp:  FormatTimestamp(s.Timestamp),
	}
}

// ProjectSeries は時系列を表示データに変換する。
// バックエンドが複数系列を返しても先頭の1本だけを銘柄コードのラベルで使う。
func ProjectSeries(code string, s model.ChartSeries) ChartView {
	labels := make([]string, 0, len(s.Labels))
	for _, l := range s.Labels {
		labels = append(labels, FormatLabel(l))
	}

	data := []float64{}
	if len(s.Datasets) > 0 {
		data = make([]float64, 0, len(s.Datasets[0].Data))
		for _, v := range s.Datasets[0].Data {
			data = append(data, v.InexactFloat64())
		}
	}

	return ChartView{
		Labels:   labels,
		Datasets: []DatasetView{{Label: code, Data: data}},
	}
}
