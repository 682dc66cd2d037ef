package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/orbit/internal/gateway"
	"github.com/hitoshi/orbit/internal/middleware"
	"github.com/hitoshi/orbit/internal/model"
	"github.com/hitoshi/orbit/internal/session"
	"github.com/hitoshi/orbit/internal/user"
	"github.com/hitoshi/orbit/internal/view"
)

const (
	msgLoginFailed    = "로그인 실패"
	msgRegisterFailed = "회원가입 실패"
)

// UserService は認証・ユーザーハンドラーが必要とするサービスインターフェース。
type UserService interface {
	Login(ctx context.Context, email, password string) gateway.Result[string]
	Logout(ctx context.Context) gateway.Result[gateway.Empty]
	Register(ctx context.Context, form user.RegisterForm) gateway.Result[model.User]
	GetUser(ctx context.Context, userID string) gateway.Result[model.User]
	ChangePassword(ctx context.Context, userID string, form user.PasswordChangeForm) gateway.Result[string]
}

// SessionInvalidator はログイン状態が変わったときにキャッシュ済みのセッション状態を捨てる。
type SessionInvalidator interface {
	Invalidate(key string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain string
	CookieSecure bool
	// CookieNames はログアウト時に失効させる認証Cookieの名前。
	CookieNames []string
}

// AuthHandler はログイン・会員登録・ログアウトのHTTPハンドラー。
// 認証Cookieはバックエンドが発行し、転送ミドルウェアがブラウザへ中継する。
type AuthHandler struct {
	users    UserService
	sessions SessionInvalidator
	pages    *pageBuilder
	config   AuthHandlerConfig
	logger   *slog.Logger
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(users UserService, sessions SessionInvalidator, pages *pageBuilder, config AuthHandlerConfig, logger *slog.Logger) *AuthHandler {
	if len(config.CookieNames) == 0 {
		config.CookieNames = session.DefaultCookieNames
	}
	return &AuthHandler{
		users:    users,
		sessions: sessions,
		pages:    pages,
		config:   config,
		logger:   logger,
	}
}

// LoginForm はログインフォームを描画する。ログイン済みならホームへ戻す。
// GET /login
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if middleware.SessionFromContext(r.Context()).LoggedIn() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.pages.render(w, r, http.StatusOK, view.PageLogin, "로그인", view.LoginData{
		Next: safeNext(r.URL.Query().Get("next")),
	})
}

// Login はログインする。失敗時はバックエンドのメッセージを添えてフォームを再表示する。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	next := safeNext(r.FormValue("next"))

	res := h.users.Login(r.Context(), email, password)
	if !res.OK() {
		page := h.pages.page(r, "로그인", view.LoginData{Email: email, Next: next})
		page.Error = failureMessage(msgLoginFailed, res.Failure)
		h.pages.renderer.Render(w, http.StatusUnauthorized, view.PageLogin, page)
		return
	}

	h.sessions.Invalidate(middleware.SessionKeyFromContext(r.Context()))
	if next != "" {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	redirectWithNotice(w, r, "/", NoticeLoggedIn, "")
}

// RegisterForm は会員登録フォームを描画する。
// GET /register
func (h *AuthHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.pages.render(w, r, http.StatusOK, view.PageRegister, "회원가입", view.RegisterData{})
}

// Register は会員登録する。成功したらログインページへ送る。
// POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	form := user.RegisterForm{
		Email: strings.TrimSpace(r.FormValue("email")),
		Name:  strings.TrimSpace(r.FormValue("name")),
		Pwd:   r.FormValue("password"),
	}
	data := view.RegisterData{Email: form.Email, Name: form.Name}

	if apiErr := user.ValidateRegistration(form); apiErr != nil {
		page := h.pages.page(r, "회원가입", data)
		page.Error = apiErr.Message
		h.pages.renderer.Render(w, http.StatusBadRequest, view.PageRegister, page)
		return
	}

	res := h.users.Register(r.Context(), form)
	if !res.OK() {
		page := h.pages.page(r, "회원가입", data)
		page.Error = failureMessage(msgRegisterFailed, res.Failure)
		h.pages.renderer.Render(w, http.StatusBadRequest, view.PageRegister, page)
		return
	}

	h.sessions.Invalidate(middleware.SessionKeyFromContext(r.Context()))
	redirectWithNotice(w, r, "/login", NoticeRegistered, "")
}

// Logout はログアウトする。バックエンドの失敗はログに残すだけで、
// ブラウザ側の認証Cookieは必ず失効させる。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if res := h.users.Logout(r.Context()); !res.OK() {
		h.logger.Warn("logout request failed", slog.String("error", res.Err().Error()))
	}

	h.sessions.Invalidate(middleware.SessionKeyFromContext(r.Context()))
	for _, name := range h.config.CookieNames {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   h.config.CookieDomain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.config.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	redirectWithNotice(w, r, "/", NoticeLoggedOut, "")
}

// failureMessage はバックエンドの応答本文があれば"接頭辞: 本文"にする。
func failureMessage(prefix string, f *gateway.Failure) string {
	if f != nil {
		if body := strings.TrimSpace(f.Body); body != "" && f.Kind != gateway.KindNetwork && f.Kind != gateway.KindServer {
			return prefix + ": " + body
		}
	}
	return prefix + ". 잠시 후 다시 시도해 주세요."
}

// safeNext はログイン後の戻り先として同一オリジンのパスだけを許す。
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	return next
}
