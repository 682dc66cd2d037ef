package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/orbit/internal/middleware"
	"github.com/hitoshi/orbit/internal/model"
	"github.com/hitoshi/orbit/internal/security"
	"github.com/hitoshi/orbit/internal/session"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	Sessions          SessionResolverInvalidator
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string
	CookieDomain      string
	CookieSecure      bool
	// UploadMaxSize は状態変更リクエストのボディ上限。0以下なら既定値。
	UploadMaxSize int64
	// Metrics が非nilなら /metrics に公開する。
	Metrics http.Handler

	// 描画
	Renderer PageRenderer
	Static   http.Handler

	// ドメイン
	Markets     MarketViewers
	Users       UserService
	Posts       BoardService
	Sanitizer   security.ContentSanitizerService
	Attachments AttachmentFetcher
	BaseURL     string
}

// defaultUploadMaxSize は投稿フォームのボディ上限の既定値。
const defaultUploadMaxSize = 50 << 20

// SessionResolverInvalidator はセッション状態の解決と無効化。session.Providerが満たす。
type SessionResolverInvalidator interface {
	middleware.SessionResolver
	SessionInvalidator
}

// NewRouter は全ページとAPIのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → Logging → SecurityHeaders
//	  → ClientID → Forward → Session → BodyLimit → CSRF → RateLimit(General)
//
// 状態変更ルートにはさらにRequireLoginとRateLimit(Write)が付く。
// /health と /metrics はClientID以降のチェーンの外に置く。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	pages := &pageBuilder{renderer: deps.Renderer, users: deps.Users}

	uploadMaxSize := deps.UploadMaxSize
	if uploadMaxSize <= 0 {
		uploadMaxSize = defaultUploadMaxSize
	}

	homeHandler := NewHomeHandler(deps.Markets, deps.Posts, deps.Users, pages, logger)
	marketHandler := NewMarketHandler(deps.Markets, pages, logger)
	boardHandler := NewBoardHandler(deps.Posts, deps.Users, deps.Sanitizer, deps.Attachments, pages,
		BoardHandlerConfig{BaseURL: deps.BaseURL, UploadMaxSize: uploadMaxSize}, logger)
	authHandler := NewAuthHandler(deps.Users, deps.Sessions, pages, AuthHandlerConfig{
		CookieDomain: deps.CookieDomain,
		CookieSecure: deps.CookieSecure,
		CookieNames:  session.DefaultCookieNames,
	}, logger)
	userHandler := NewUserHandler(deps.Users, deps.Sessions, pages, logger)

	r.Get("/health", Health)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}
	if deps.Static != nil {
		r.Handle("/static/*", deps.Static)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewClientIDMiddleware(middleware.CookieConfig{
			Secure: deps.CookieSecure,
			Domain: deps.CookieDomain,
		}))
		r.Use(middleware.NewForwardMiddleware(middleware.ForwardConfig{
			CookieDomain: deps.CookieDomain,
			CookieSecure: deps.CookieSecure,
			Internal:     []string{middleware.ClientIDCookieName, middleware.CSRFCookieName},
		}))
		r.Use(middleware.NewSessionMiddleware(deps.Sessions, session.DefaultCookieNames))
		r.Use(middleware.NewBodyLimitMiddleware(uploadMaxSize))
		r.Use(middleware.NewCSRFMiddleware(middleware.CSRFConfig{
			CookieSecure: deps.CookieSecure,
			CookieDomain: deps.CookieDomain,
			BodyTooLarge: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				pages.renderError(w, r, http.StatusRequestEntityTooLarge, model.NewPayloadTooLargeError(uploadMaxSize))
			}),
		}))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		requireLogin := middleware.NewRequireLoginMiddleware(NoticeLoginRequired)
		write := deps.RateLimiter.WriteMiddleware()

		r.Get("/", homeHandler.Home)

		// マーケットウィジェット
		r.Get("/market/{kind}", marketHandler.Widget)
		r.Route("/api", func(r chi.Router) {
			r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
			r.Get("/market/{kind}", marketHandler.Snapshot)
		})

		// 認証
		r.Get("/login", authHandler.LoginForm)
		r.With(write).Post("/login", authHandler.Login)
		r.Get("/register", authHandler.RegisterForm)
		r.With(write).Post("/register", authHandler.Register)
		r.With(write).Post("/logout", authHandler.Logout)

		// ユーザー情報
		r.Group(func(r chi.Router) {
			r.Use(requireLogin)
			r.Get("/user-info", userHandler.Info)
			r.With(write).Post("/user-info", userHandler.ChangePassword)
		})

		// 掲示板
		r.Route("/board", func(r chi.Router) {
			r.Get("/", boardHandler.List)
			r.Get("/search", boardHandler.Search)
			r.Get("/rss.xml", boardHandler.RSS)
			r.With(requireLogin).Get("/new", boardHandler.New)
			r.With(requireLogin, write).Post("/", boardHandler.Create)

			r.Route("/{postID}", func(r chi.Router) {
				r.Get("/", boardHandler.Detail)
				r.Get("/files/{fileID}", boardHandler.Attachment)

				r.Group(func(r chi.Router) {
					r.Use(requireLogin)
					r.Get("/edit", boardHandler.Edit)
					r.With(write).Post("/edit", boardHandler.Update)
					r.With(write).Post("/delete", boardHandler.Delete)

					r.With(write).Post("/comments", boardHandler.CreateComment)
					r.With(write).Post("/comments/{commentID}", boardHandler.UpdateComment)
					r.With(write).Post("/comments/{commentID}/delete", boardHandler.DeleteComment)
				})
			})
		})

		r.NotFound(pages.NotFound)
	})

	return r
}
