package market

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/orbit/internal/metrics"
)

// RegistryConfig はビューア管理の設定を保持する。
type RegistryConfig struct {
	IdleTTL         time.Duration // 最終アクセスからビューアを破棄するまでの時間
	CleanupInterval time.Duration // 期限切れビューアのクリーンアップ間隔
	Concurrency     int           // 銘柄確認の同時実行数
	AvailabilityTTL time.Duration // 銘柄確認の結果を共有する期間
}

const defaultAvailabilityTTL = 10 * time.Minute

// clientViewers はブラウザ1つ分のビューア群。
type clientViewers struct {
	viewers    map[Kind]*Viewer
	lastAccess time.Time
}

// Registry はブラウザ（クライアントID）ごと・市場ごとにビューアを保持する。
// 同じブラウザの連続した選択は同じビューアを通るため、古い選択の取得は破棄される。
type Registry struct {
	catalog *Catalog
	source  Source
	config  RegistryConfig
	logger  *slog.Logger
	metrics metrics.MetricsCollector
	now     func() time.Time

	availability *AvailabilityCache

	mu      sync.Mutex
	clients map[string]*clientViewers

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRegistry は新しいRegistryを生成し、期限切れビューアのクリーンアップを開始する。
func NewRegistry(catalog *Catalog, source Source, config RegistryConfig, logger *slog.Logger, m metrics.MetricsCollector) *Registry {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}
	if config.AvailabilityTTL <= 0 {
		config.AvailabilityTTL = defaultAvailabilityTTL
	}
	r := &Registry{
		catalog: catalog,
		source:  source,
		config:  config,
		logger:  logger,
		metrics: m,
		now:     time.Now,
		clients: make(map[string]*clientViewers),
		stopCh:  make(chan struct{}),

		availability: NewAvailabilityCache(source, config.Concurrency, config.AvailabilityTTL, logger, m),
	}

	go r.cleanupLoop()

	return r
}

// Catalog はカタログを返す。
func (r *Registry) Catalog() *Catalog {
	return r.catalog
}

// Viewer はクライアントの市場ビューアを取得または作成する。
// clientIDが空の場合は保持しない使い捨てのビューアを返す。
func (r *Registry) Viewer(clientID string, kind Kind) (*Viewer, error) {
	desc, err := r.catalog.Descriptor(kind)
	if err != nil {
		return nil, err
	}
	if clientID == "" {
		return r.newViewer(desc), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cv, ok := r.clients[clientID]
	if !ok {
		cv = &clientViewers{viewers: make(map[Kind]*Viewer)}
		r.clients[clientID] = cv
	}
	cv.lastAccess = r.now()

	v, ok := cv.viewers[kind]
	if !ok {
		v = r.newViewer(desc)
		cv.viewers[kind] = v
	}
	return v, nil
}

// ClientCount は保持しているクライアント数を返す。テスト用。
func (r *Registry) ClientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Stop はクリーンアップを停止し、取得中の選択をすべてキャンセルする。
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cv := range r.clients {
		for _, v := range cv.viewers {
			v.close()
		}
	}
}

func (r *Registry) newViewer(desc *Descriptor) *Viewer {
	return newViewer(desc, r.source, r.logger, r.metrics, r.availability)
}

func (r *Registry) cleanupLoop() {
	ticker := time.NewTicker(r.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanup()
		case <-r.stopCh:
			return
		}
	}
}

// cleanup はIdleTTLを過ぎたクライアントのビューアを破棄する。
func (r *Registry) cleanup() {
	if r.config.IdleTTL <= 0 {
		return
	}
	threshold := r.now().Add(-r.config.IdleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, cv := range r.clients {
		if cv.lastAccess.Before(threshold) {
			for _, v := range cv.viewers {
				v.close()
			}
			delete(r.clients, id)
		}
	}
}
