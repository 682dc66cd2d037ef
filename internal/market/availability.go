package market

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/orbit/internal/metrics"
)

// ProbeAvailability は全銘柄のサマリーを同時実行数limitで確認し、
// 取得できなかった銘柄コードの集合を返す。
// 1銘柄も取得できなかった場合は何も無効化しない（空の集合を返す）。
func ProbeAvailability(ctx context.Context, source Source, d *Descriptor, limit int, m metrics.MetricsCollector) map[string]bool {
	if limit < 1 {
		limit = 1
	}

	var (
		mu          sync.Mutex
		unavailable = make(map[string]bool)
		g           errgroup.Group
	)
	g.SetLimit(limit)

	for _, in := range d.Instruments {
		g.Go(func() error {
			ok := source.Summary(ctx, d, in.Code).OK()
			if m != nil {
				m.RecordAvailabilityProbe(string(d.Kind), ok)
			}
			if !ok {
				mu.Lock()
				unavailable[in.Code] = true
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(unavailable) == len(d.Instruments) {
		return make(map[string]bool)
	}
	return unavailable
}

type availabilityEntry struct {
	unavailable map[string]bool
	checkedAt   time.Time
}

// AvailabilityCache は市場ごとの銘柄確認の結果をttlの間すべてのビューアで共有する。
// 同時に始まった確認はsingleflightで1回にまとめる。ttlが0以下なら結果は失効しない。
type AvailabilityCache struct {
	source  Source
	limit   int
	ttl     time.Duration
	logger  *slog.Logger
	metrics metrics.MetricsCollector
	now     func() time.Time

	group   singleflight.Group
	mu      sync.Mutex
	entries map[Kind]availabilityEntry
}

// NewAvailabilityCache はAvailabilityCacheを生成する。limitは確認の同時実行数。
func NewAvailabilityCache(source Source, limit int, ttl time.Duration, logger *slog.Logger, m metrics.MetricsCollector) *AvailabilityCache {
	return &AvailabilityCache{
		source:  source,
		limit:   limit,
		ttl:     ttl,
		logger:  logger,
		metrics: m,
		now:     time.Now,
		entries: make(map[Kind]availabilityEntry),
	}
}

// Unavailable はデータのない銘柄コードの集合を返す。
// 返した集合は複数のビューアで共有されるため、呼び出し側で変更してはならない。
// 呼び出し元のキャンセルで確認結果が欠けないよう、確認自体はキャンセルを引き継がない。
func (c *AvailabilityCache) Unavailable(ctx context.Context, d *Descriptor) map[string]bool {
	if !d.ProbeAvailability {
		return nil
	}
	if u, ok := c.cached(d.Kind); ok {
		return u
	}

	v, _, _ := c.group.Do(string(d.Kind), func() (any, error) {
		if u, ok := c.cached(d.Kind); ok {
			return u, nil
		}
		u := ProbeAvailability(context.WithoutCancel(ctx), c.source, d, c.limit, c.metrics)

		c.mu.Lock()
		c.entries[d.Kind] = availabilityEntry{unavailable: u, checkedAt: c.now()}
		c.mu.Unlock()

		if len(u) > 0 {
			c.logger.Info("データのない銘柄を無効化しました",
				slog.String("kind", string(d.Kind)),
				slog.Int("unavailable", len(u)),
			)
		}
		return u, nil
	})
	return v.(map[string]bool)
}

func (c *AvailabilityCache) cached(kind Kind) (map[string]bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[kind]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(e.checkedAt) >= c.ttl {
		delete(c.entries, kind)
		return nil, false
	}
	return e.unavailable, true
}
