// Package app は設定・ロガー・依存関係を組み立て、HTTPサーバーを起動する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/orbit/internal/board"
	"github.com/hitoshi/orbit/internal/config"
	"github.com/hitoshi/orbit/internal/gateway"
	"github.com/hitoshi/orbit/internal/handler"
	"github.com/hitoshi/orbit/internal/logger"
	"github.com/hitoshi/orbit/internal/market"
	"github.com/hitoshi/orbit/internal/metrics"
	"github.com/hitoshi/orbit/internal/middleware"
	"github.com/hitoshi/orbit/internal/security"
	"github.com/hitoshi/orbit/internal/session"
	"github.com/hitoshi/orbit/internal/user"
	"github.com/hitoshi/orbit/internal/view"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	if w == nil {
		w = os.Stdout
	}
	cfg, err := config.Load()
	if err != nil {
		// 設定を読めなくてもエラーはJSONで残す
		logger.SetupDefault(w, slog.LevelInfo)
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.Setup(w, logger.ParseLevel(cfg.LogLevel))
	slog.SetDefault(log)
	return cfg, log, nil
}

// Server は組み立て済みのHTTPハンドラーと、停止が必要なバックグラウンド処理を持つ。
type Server struct {
	Handler http.Handler

	sessions    *session.Provider
	markets     *market.Registry
	rateLimiter *middleware.RateLimiter
	unsubscribe func()
}

// Close はセッション・ビューア・レート制限のバックグラウンド処理を停止する。
func (s *Server) Close() {
	s.unsubscribe()
	s.sessions.Stop()
	s.markets.Stop()
	s.rateLimiter.Stop()
}

// Build は設定から全依存関係をワイヤリングする。
// reg にはメトリクスを登録し、/metrics で公開する。
func Build(cfg *config.Config, log *slog.Logger, reg *prometheus.Registry) (*Server, error) {
	// 1. 起動時に検証できるもの（カタログ・テンプレート）を先に読み込む
	catalog, err := market.LoadCatalog(cfg.MarketCatalogPath)
	if err != nil {
		return nil, err
	}
	renderer, err := view.NewRenderer(log)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	// 2. メトリクス
	collector := metrics.NewCollector(reg)

	// 3. ゲートウェイクライアント
	httpClient := &http.Client{Timeout: cfg.GatewayTimeout}
	client := gateway.NewClient(cfg.APIBaseURL, httpClient, log, gateway.WithMetrics(collector))

	// 4. 添付ファイル（添付用のタイムアウトで切り、外部URLとリダイレクト先はSSRFガード付き）
	attachments, err := security.NewAttachmentFetcher(
		cfg.APIBaseURL, nil, security.NewSSRFGuard(),
		cfg.AttachmentTimeout, cfg.AttachmentMaxSize, log,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build attachment fetcher: %w", err)
	}

	// 5. ドメインサービス
	userService := user.NewService(client)
	boardService := board.NewService(client)

	// 6. セッション状態
	sessions := session.NewProvider(userService, cfg.SessionStateTTL, log, session.WithMetrics(collector))
	unsubscribe := sessions.Subscribe(func(c session.Change) {
		log.Debug("session state changed",
			slog.String("state", string(c.Status.State)),
			slog.String("user_id", c.Status.UserID),
		)
	})

	// 7. マーケット
	markets := market.NewRegistry(catalog, market.NewGatewaySource(client), market.RegistryConfig{
		IdleTTL:         cfg.ViewerIdleTTL,
		Concurrency:     cfg.AvailabilityConcurrency,
		AvailabilityTTL: cfg.AvailabilityTTL,
	}, log, collector)

	// 8. ルーター
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitWrite), log)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		Sessions:          sessions,
		RateLimiter:       rateLimiter,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CookieDomain:      cfg.CookieDomain,
		CookieSecure:      cfg.CookieSecure,
		UploadMaxSize:     cfg.UploadMaxSize,
		Metrics:           metrics.Handler(reg),

		Renderer: renderer,
		Static:   view.StaticHandler(),

		Markets:     markets,
		Users:       userService,
		Posts:       boardService,
		Sanitizer:   security.NewContentSanitizer(),
		Attachments: attachments,
		BaseURL:     cfg.BaseURL,
	})

	return &Server{
		Handler:     router,
		sessions:    sessions,
		markets:     markets,
		rateLimiter: rateLimiter,
		unsubscribe: unsubscribe,
	}, nil
}

// NewRegistry はGo・プロセスのメトリクスを含むPrometheusレジストリを返す。
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Serve はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルシャットダウンする。
func Serve(ctx context.Context, w io.Writer) error {
	cfg, log, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	log.Info("starting application",
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("api_base_url", cfg.APIBaseURL),
	)

	srv, err := Build(cfg, log, NewRegistry())
	if err != nil {
		return err
	}
	defer srv.Close()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2*cfg.GatewayTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("HTTP server stopped gracefully")
	return nil
}

// Healthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func Healthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
