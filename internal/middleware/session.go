// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/orbit/internal/model"
	"github.com/hitoshi/orbit/internal/session"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	userIDContextKey     = contextKey("user_id")
	sessionContextKey    = contextKey("session_status")
	sessionKeyContextKey = contextKey("session_key")
)

// SessionResolver はセッション状態の解決に必要なインターフェース。
// session.Providerの部分集合として定義する。
type SessionResolver interface {
	Resolve(ctx context.Context, key string) session.Status
}

// NewSessionMiddleware は認証Cookieからセッション状態を1回だけ解決し、
// リクエストコンテキストに注入するミドルウェアを返す。
// ページ内のどのコンポーネントもこの値を読むため、1リクエストで確認は1回に限られる。
// 未ログインでもリクエストは拒否しない。
// NewForwardMiddlewareの後に配置する（確認APIに受信Cookieを転送するため）。
func NewSessionMiddleware(resolver SessionResolver, cookieNames []string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := session.KeyFromCookies(r.Cookies(), cookieNames)
			status := resolver.Resolve(r.Context(), key)

			ctx := context.WithValue(r.Context(), sessionContextKey, status)
			ctx = context.WithValue(ctx, sessionKeyContextKey, key)
			if status.LoggedIn() {
				ctx = context.WithValue(ctx, userIDContextKey, status.UserID)
				noteUserForLog(ctx, status.UserID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewRequireLoginMiddleware は未ログインのリクエストを/loginへリダイレクトする。
// noticeはログインページに表示する案内文。
// スクリプトからの送信（X-CSRF-Tokenヘッダー付き、またはJSONを求めるもの）にはリダイレクトせずJSONの401を返す。
func NewRequireLoginMiddleware(notice string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if SessionFromContext(r.Context()).LoggedIn() {
				next.ServeHTTP(w, r)
				return
			}
			if wantsJSON(r) {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewLoginRequiredError("이용할"))
				return
			}
			http.Redirect(w, r, LoginURL(notice, returnPath(r)), http.StatusSeeOther)
		})
	}
}

// returnPath はログイン後に戻る先を返す。
// GET/HEADはそのURL。送信系のメソッドはログイン後にGETで開けないため、
// 同一ホストのRefererがあればその画面に戻し、なければ戻り先を付けない。
func returnPath(r *http.Request) string {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return r.URL.RequestURI()
	}
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Host == "" || !strings.EqualFold(ref.Host, r.Host) {
		return ""
	}
	if !strings.HasPrefix(ref.Path, "/") || strings.HasPrefix(ref.Path, "//") {
		return ""
	}
	return ref.RequestURI()
}

func wantsJSON(r *http.Request) bool {
	return r.Header.Get(csrfHeaderName) != "" ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

// LoginURL は案内文と戻り先を付けたログインページのURLを返す。
func LoginURL(notice, next string) string {
	q := url.Values{}
	if notice != "" {
		q.Set("notice", notice)
	}
	if next != "" {
		q.Set("next", next)
	}
	if len(q) == 0 {
		return "/login"
	}
	return "/login?" + q.Encode()
}

// SessionFromContext はリクエストのセッション状態を返す。未解決ならunknown。
func SessionFromContext(ctx context.Context) session.Status {
	if st, ok := ctx.Value(sessionContextKey).(session.Status); ok {
		return st
	}
	return session.Unknown()
}

// SessionKeyFromContext はセッション状態の解決に使ったキーを返す。
// ログイン・ログアウト時の無効化に使う。
func SessionKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(sessionKeyContextKey).(string)
	return key
}

// ContextWithSession はコンテキストにセッション状態を注入する。テスト用。
func ContextWithSession(ctx context.Context, status session.Status) context.Context {
	ctx = context.WithValue(ctx, sessionContextKey, status)
	if status.LoggedIn() {
		ctx = context.WithValue(ctx, userIDContextKey, status.UserID)
	}
	return ctx
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// ログイン中のリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
