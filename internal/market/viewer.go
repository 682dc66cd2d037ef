package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/orbit/internal/gateway"
	"github.com/hitoshi/orbit/internal/metrics"
	"github.com/hitoshi/orbit/internal/model"
)

// ErrSuperseded は同じビューアで新しい選択が始まり、古い選択の結果を破棄したことを示す。
var ErrSuperseded = errors.New("market: selection superseded")

// Outcome はサマリー・チャートそれぞれの取得結果。
type Outcome string

const (
	OutcomeLoading  Outcome = "loading"
	OutcomeOK       Outcome = "ok"
	OutcomeNotFound Outcome = "not_found"
	OutcomeError    Outcome = "error"
)

const (
	msgChartError   = "차트 데이터를 불러오는 데 실패했습니다"
	msgSummaryError = "요약 정보를 불러오는 데 실패했습니다"
)

// Selection は選択中の銘柄と期間。
type Selection struct {
	Code   string `json:"code"`
	Period string `json:"period"`
}

// InstrumentOption は銘柄ボタン1つ分。
type InstrumentOption struct {
	Instrument
	Selected bool `json:"selected"`
	Disabled bool `json:"disabled"`
}

// PeriodOption は期間ボタン1つ分。
// Disabledは選択中の銘柄でその期間が404を返したことがある場合に真になる。
// 表示を変えるだけで選択はでき、再取得に成功すれば外れる。
type PeriodOption struct {
	Period
	Selected bool `json:"selected"`
	Disabled bool `json:"disabled"`
}

// SummarySection は要約パネルの状態。
type SummarySection struct {
	Outcome Outcome      `json:"outcome"`
	Data    *SummaryView `json:"data,omitempty"`
	Message string       `json:"message,omitempty"`
}

// ChartSection はチャートの状態。
type ChartSection struct {
	Outcome Outcome    `json:"outcome"`
	Data    *ChartView `json:"data,omitempty"`
	Message string     `json:"message,omitempty"`
	Action  string     `json:"action,omitempty"`
}

// Snapshot はウィジェットの描画に必要な全データ。
type Snapshot struct {
	Kind        Kind               `json:"kind"`
	Title       string             `json:"title"`
	Selection   Selection          `json:"selection"`
	Instrument  Instrument         `json:"instrument"`
	Instruments []InstrumentOption `json:"instruments"`
	Periods     []PeriodOption     `json:"periods"`
	Summary     SummarySection     `json:"summary"`
	Chart       ChartSection       `json:"chart"`
	// Unavailable はサマリーもチャートも得られなかった場合の案内文。
	Unavailable string `json:"unavailable,omitempty"`
}

// Viewer は1つの市場ウィジェットの選択状態を持つ。
//
// 選択のたびに世代番号を進め、前の選択の取得をキャンセルする。
// 取得完了時に世代が変わっていれば結果を捨ててErrSupersededを返すため、
// 遅れて返った古い選択が新しい選択の状態を上書きすることはない。
type Viewer struct {
	desc         *Descriptor
	source       Source
	logger       *slog.Logger
	metrics      metrics.MetricsCollector
	availability *AvailabilityCache

	mu          sync.Mutex
	gen         uint64
	cancel      context.CancelFunc
	current     Selection
	noData      map[Selection]bool
	unavailable map[string]bool
}

// NewViewer は銘柄確認の結果を自分だけで持つViewerを生成する。
// concurrencyは銘柄確認の同時実行数。
func NewViewer(desc *Descriptor, source Source, logger *slog.Logger, m metrics.MetricsCollector, concurrency int) *Viewer {
	return newViewer(desc, source, logger, m, NewAvailabilityCache(source, concurrency, 0, logger, m))
}

func newViewer(desc *Descriptor, source Source, logger *slog.Logger, m metrics.MetricsCollector, availability *AvailabilityCache) *Viewer {
	return &Viewer{
		desc:         desc,
		source:       source,
		logger:       logger,
		metrics:      m,
		availability: availability,
		noData:       make(map[Selection]bool),
		unavailable:  make(map[string]bool),
	}
}

// Descriptor はビューアの定義を返す。
func (v *Viewer) Descriptor() *Descriptor {
	return v.desc
}

// Select は銘柄と期間を選択し、サマリーと時系列を並行に取得する。
// 空のcodeとperiodは既定値（利用可能な最初の銘柄、最初の期間）になる。
// 取得中に同じビューアで次の選択が始まった場合はErrSupersededを返す。
func (v *Viewer) Select(ctx context.Context, code, period string) (*Snapshot, error) {
	v.refreshAvailability(ctx)

	sel, err := v.resolve(code, period)
	if err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	v.mu.Lock()
	v.gen++
	gen := v.gen
	if v.cancel != nil {
		v.cancel()
	}
	v.cancel = cancel
	v.current = sel
	v.mu.Unlock()

	var (
		summary gateway.Result[model.Summary]
		series  gateway.Result[model.ChartSeries]
		g       errgroup.Group
	)
	g.Go(func() error {
		summary = v.source.Summary(fetchCtx, v.desc, sel.Code)
		return nil
	})
	g.Go(func() error {
		series = v.source.Series(fetchCtx, v.desc, sel.Code, sel.Period)
		return nil
	})
	_ = g.Wait()

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.gen != gen {
		if v.metrics != nil {
			v.metrics.RecordSupersededSelection(string(v.desc.Kind))
		}
		v.logger.Debug("古い選択の取得結果を破棄しました",
			slog.String("kind", string(v.desc.Kind)),
			slog.String("code", sel.Code),
			slog.String("period", sel.Period),
		)
		return nil, ErrSuperseded
	}
	v.cancel = nil

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch {
	case series.Is(gateway.KindNotFound):
		v.noData[sel] = true
	case series.OK():
		delete(v.noData, sel)
	}

	return v.snapshotLocked(sel, summary, series), nil
}

// Placeholder は取得前の状態（両セクションともloading）のスナップショットを返す。
func (v *Viewer) Placeholder() *Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	sel := v.current
	if sel.Code == "" {
		sel = Selection{Code: v.defaultCodeLocked(), Period: v.desc.Periods[0].Key}
	}
	snap := v.baseSnapshotLocked(sel)
	snap.Summary = SummarySection{Outcome: OutcomeLoading}
	snap.Chart = ChartSection{Outcome: OutcomeLoading}
	return snap
}

// Current は最後に開始した選択を返す。
func (v *Viewer) Current() Selection {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// close は取得中の選択をキャンセルする。
func (v *Viewer) close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
}

func (v *Viewer) resolve(code, period string) (Selection, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	sel := Selection{Code: code, Period: period}
	if sel.Code == "" {
		sel.Code = v.defaultCodeLocked()
	} else if _, ok := v.desc.Instrument(sel.Code); !ok {
		return Selection{}, model.NewUnknownInstrumentError(sel.Code)
	}
	if sel.Period == "" {
		sel.Period = v.desc.Periods[0].Key
	} else if _, ok := v.desc.Period(sel.Period); !ok {
		return Selection{}, model.NewUnknownPeriodError(sel.Period)
	}
	return sel, nil
}

func (v *Viewer) defaultCodeLocked() string {
	for _, in := range v.desc.Instruments {
		if !v.unavailable[in.Code] {
			return in.Code
		}
	}
	return v.desc.Instruments[0].Code
}

func (v *Viewer) baseSnapshotLocked(sel Selection) *Snapshot {
	in, _ := v.desc.Instrument(sel.Code)

	instruments := make([]InstrumentOption, 0, len(v.desc.Instruments))
	for _, i := range v.desc.Instruments {
		instruments = append(instruments, InstrumentOption{
			Instrument: i,
			Selected:   i.Code == sel.Code,
			Disabled:   v.unavailable[i.Code],
		})
	}

	periods := make([]PeriodOption, 0, len(v.desc.Periods))
	for _, p := range v.desc.Periods {
		periods = append(periods, PeriodOption{
			Period:   p,
			Selected: p.Key == sel.Period,
			Disabled: v.noData[Selection{Code: sel.Code, Period: p.Key}],
		})
	}

	return &Snapshot{
		Kind:        v.desc.Kind,
		Title:       v.desc.Title,
		Selection:   sel,
		Instrument:  in,
		Instruments: instruments,
		Periods:     periods,
	}
}

func (v *Viewer) snapshotLocked(sel Selection, summary gateway.Result[model.Summary], series gateway.Result[model.ChartSeries]) *Snapshot {
	snap := v.baseSnapshotLocked(sel)

	switch {
	case summary.OK():
		view := ProjectSummary(v.desc, snap.Instrument, summary.Value)
		snap.Summary = SummarySection{Outcome: OutcomeOK, Data: &view}
	case summary.Is(gateway.KindNotFound):
		snap.Summary = SummarySection{Outcome: OutcomeNotFound}
	default:
		snap.Summary = SummarySection{Outcome: OutcomeError, Message: msgSummaryError}
	}

	switch {
	case series.OK():
		view := ProjectSeries(sel.Code, series.Value)
		snap.Chart = ChartSection{Outcome: OutcomeOK, Data: &view}
	case series.Is(gateway.KindNotFound):
		noData := model.NewNoDataForPeriodError()
		snap.Chart = ChartSection{Outcome: OutcomeNotFound, Message: noData.Message, Action: noData.Action}
	default:
		snap.Chart = ChartSection{Outcome: OutcomeError, Message: msgChartError}
	}

	if snap.Summary.Outcome != OutcomeOK && snap.Chart.Outcome != OutcomeOK {
		name := snap.Instrument.Name
		if name == "" {
			name = sel.Code
		}
		snap.Unavailable = fmt.Sprintf("선택한 %s(%s)의 데이터를 사용할 수 없습니다.", v.desc.Subject, name)
	}
	return snap
}

// refreshAvailability は銘柄確認の結果をキャッシュから取り込む。
// 確認が必要なのはキャッシュが空か失効したときだけ。
func (v *Viewer) refreshAvailability(ctx context.Context) {
	if !v.desc.ProbeAvailability {
		return
	}
	unavailable := v.availability.Unavailable(ctx, v.desc)
	v.mu.Lock()
	v.unavailable = unavailable
	v.mu.Unlock()
}
