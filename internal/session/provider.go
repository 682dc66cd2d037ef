// Package session はログイン状態を共有するセッション状態プロバイダーを提供する。
// 同一セッションへの確認はまとめて1回にし、解決済みの状態を短時間保持する。
// ログイン・ログアウト・会員登録・パスワード変更時には明示的に無効化する。
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/orbit/internal/gateway"
	"github.com/hitoshi/orbit/internal/metrics"
	"github.com/hitoshi/orbit/internal/model"
)

// State はセッションの状態。
type State string

const (
	StateUnknown   State = "unknown"
	StateLoggedIn  State = "logged_in"
	StateLoggedOut State = "logged_out"
)

// Status は解決済みのセッション状態。
type Status struct {
	State  State
	UserID string
}

// LoggedIn はログイン済みかを返す。
func (s Status) LoggedIn() bool {
	return s.State == StateLoggedIn && s.UserID != ""
}

// Unknown は未確認状態を返す。
func Unknown() Status {
	return Status{State: StateUnknown}
}

// LoggedOut は未ログイン状態を返す。
func LoggedOut() Status {
	return Status{State: StateLoggedOut}
}

// Change は購読者に通知する状態変化。
type Change struct {
	Key    string
	Status Status
}

// Checker はバックエンドの「自分は誰か」エンドポイントを呼び出す。
type Checker interface {
	CheckSession(ctx context.Context) gateway.Result[model.Me]
}

// DefaultCookieNames はバックエンドが発行する認証Cookieの名前。
var DefaultCookieNames = []string{"accessToken", "refreshToken"}

// KeyFromCookies は認証Cookieからセッションキーを導出する。
// Cookieの値そのものは保持せず、ハッシュのみを使う。認証Cookieがない場合は空文字。
func KeyFromCookies(cookies []*http.Cookie, names []string) string {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	var parts []string
	for _, c := range cookies {
		if wanted[c.Name] && c.Value != "" {
			parts = append(parts, c.Name+"="+c.Value)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	sort.Strings(parts)

	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

type entry struct {
	status    Status
	expiresAt time.Time
}

// epoch はキーごとの無効化世代。無効化前に始まった確認の結果を捨てるために使う。
type epoch struct {
	n             uint64
	invalidatedAt time.Time
}

// epochRetention は無効化世代を保持する最短期間。
// ゲートウェイのタイムアウトより十分長くしておく。
const epochRetention = 2 * time.Minute

// Provider はセッション状態プロバイダー。
type Provider struct {
	checker Checker
	ttl     time.Duration
	logger  *slog.Logger
	metrics metrics.MetricsCollector
	now     func() time.Time

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]entry
	epochs  map[string]epoch

	subMu   sync.RWMutex
	subs    map[int]func(Change)
	nextSub int

	stopCh   chan struct{}
	stopOnce sync.Once
}

// Option はProviderの任意設定。
type Option func(*Provider)

// WithMetrics はセッション確認結果の記録先を設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(p *Provider) {
		p.metrics = m
	}
}

// WithClock は現在時刻の取得関数を差し替える。テスト用。
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// NewProvider は新しいProviderを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewProvider(checker Checker, ttl time.Duration, logger *slog.Logger, opts ...Option) *Provider {
	p := &Provider{
		checker: checker,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]entry),
		epochs:  make(map[string]epoch),
		subs:    make(map[int]func(Change)),
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	go p.cleanupLoop()

	return p
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (p *Provider) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// Resolve はセッションキーの状態を解決する。
// 保持中の状態があればそれを返し、なければバックエンドに確認する。
// 同じキーの同時確認は1回の呼び出しにまとめる。確認の失敗は未ログインとして扱う。
func (p *Provider) Resolve(ctx context.Context, key string) Status {
	if key == "" {
		return LoggedOut()
	}

	if st, ok := p.cached(key); ok {
		return st
	}

	v, _, _ := p.group.Do(key, func() (interface{}, error) {
		p.mu.Lock()
		gen := p.epochs[key].n
		p.mu.Unlock()

		// 呼び出し元のキャンセルが他の待機者に波及しないよう切り離す
		res := p.checker.CheckSession(context.WithoutCancel(ctx))
		st, cacheable := p.interpret(res)
		if cacheable {
			p.store(key, gen, st)
		}
		return st, nil
	})

	return v.(Status)
}

// Invalidate はキーの保持状態を破棄し、購読者に未確認状態を通知する。
// 確認中の結果は保存されなくなる。
func (p *Provider) Invalidate(key string) {
	if key == "" {
		return
	}

	p.mu.Lock()
	delete(p.entries, key)
	p.epochs[key] = epoch{n: p.epochs[key].n + 1, invalidatedAt: p.now()}
	p.mu.Unlock()

	p.group.Forget(key)

	p.logger.Debug("セッション状態を無効化しました")
	p.notify(Change{Key: key, Status: Unknown()})
}

// Subscribe は状態変化の通知先を登録し、解除関数を返す。
// 通知は状態を変化させたゴルーチンから同期的に呼ばれる。
func (p *Provider) Subscribe(fn func(Change)) func() {
	p.subMu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.subMu.Unlock()

	return func() {
		p.subMu.Lock()
		delete(p.subs, id)
		p.subMu.Unlock()
	}
}

// Len は保持中のエントリ数を返す。テストおよびメトリクス用。
func (p *Provider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

func (p *Provider) cached(key string) (Status, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[key]
	if !ok || !p.now().Before(e.expiresAt) {
		return Status{}, false
	}
	return e.status, true
}

// interpret は確認結果を状態に変換する。
// 通信エラーとサーバーエラーは一時的な失敗として保持しない。
func (p *Provider) interpret(res gateway.Result[model.Me]) (Status, bool) {
	if res.OK() {
		if res.Value.UserID == "" {
			p.record("logged_out")
			return LoggedOut(), true
		}
		p.record("logged_in")
		return Status{State: StateLoggedIn, UserID: res.Value.UserID}, true
	}

	switch res.Failure.Kind {
	case gateway.KindNetwork, gateway.KindServer:
		p.logger.Warn("セッション確認に失敗したため未ログインとして扱います",
			slog.String("kind", string(res.Failure.Kind)),
		)
		p.record("error")
		return LoggedOut(), false
	default:
		p.record("logged_out")
		return LoggedOut(), true
	}
}

func (p *Provider) store(key string, gen uint64, st Status) {
	p.mu.Lock()
	if p.epochs[key].n != gen {
		p.mu.Unlock()
		return
	}
	prev, had := p.entries[key]
	p.entries[key] = entry{status: st, expiresAt: p.now().Add(p.ttl)}
	p.mu.Unlock()

	if !had || prev.status != st {
		p.notify(Change{Key: key, Status: st})
	}
}

func (p *Provider) notify(c Change) {
	p.subMu.RLock()
	fns := make([]func(Change), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.subMu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}

func (p *Provider) record(outcome string) {
	if p.metrics != nil {
		p.metrics.RecordSessionCheck(outcome)
	}
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (p *Provider) cleanupLoop() {
	interval := p.ttl
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.cleanup()
		case <-p.stopCh:
			return
		}
	}
}

// cleanup は期限切れのエントリと古い無効化世代を削除する。
func (p *Provider) cleanup() {
	now := p.now()
	retention := epochRetention
	if 2*p.ttl > retention {
		retention = 2 * p.ttl
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for key, e := range p.entries {
		if !now.Before(e.expiresAt) {
			delete(p.entries, key)
		}
	}
	for key, ep := range p.epochs {
		if now.Sub(ep.invalidatedAt) > retention {
			delete(p.epochs, key)
		}
	}
}
