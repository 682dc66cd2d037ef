package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// ClientIDCookieName はブラウザを識別するCookieの名前。
// マーケットウィジェットの選択状態をブラウザ単位で保持するために使う。
const ClientIDCookieName = "orbit_client"

const clientIDMaxAge = 365 * 24 * 60 * 60

var (
	clientIDContextKey       = contextKey("client_id")
	clientIDIssuedContextKey = contextKey("client_id_issued")
)

// CookieConfig はこのサーバーが発行するCookieの属性。
type CookieConfig struct {
	Secure bool
	Domain string
}

// NewClientIDMiddleware はブラウザ識別用のCookieを用意し、IDをコンテキストに置く。
func NewClientIDMiddleware(config CookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(ClientIDCookieName); err == nil {
				if parsed, err := uuid.Parse(c.Value); err == nil {
					id = parsed.String()
				}
			}
			issued := id == ""
			if issued {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     ClientIDCookieName,
					Value:    id,
					Path:     "/",
					Domain:   config.Domain,
					MaxAge:   clientIDMaxAge,
					HttpOnly: true,
					Secure:   config.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx := context.WithValue(r.Context(), clientIDContextKey, id)
			ctx = context.WithValue(ctx, clientIDIssuedContextKey, issued)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIDFromContext はブラウザ識別IDを返す。
func ClientIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(clientIDContextKey).(string)
	return id
}

// ReturningClientIDFromContext はブラウザが送ってきたIDを返す。このリクエストで発行したIDなら空文字。
// Cookieを送らないクライアントのために状態を作らないよう、ブラウザ単位の状態のキーにはこちらを使う。
func ReturningClientIDFromContext(ctx context.Context) string {
	if issued, _ := ctx.Value(clientIDIssuedContextKey).(bool); issued {
		return ""
	}
	return ClientIDFromContext(ctx)
}

// ContextWithClientID はコンテキストにブラウザ識別IDを注入する。テスト用。
func ContextWithClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientIDContextKey, id)
}
