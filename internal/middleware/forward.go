package middleware

import (
	"net/http"

	"github.com/hitoshi/orbit/internal/gateway"
)

// ForwardConfig はCookie中継の設定。
type ForwardConfig struct {
	// CookieDomain はブラウザへ中継するCookieに付けるドメイン。空ならホスト限定。
	CookieDomain string
	// CookieSecure が真なら中継するCookieにSecure属性を付ける。
	CookieSecure bool
	// Internal はこのサーバー自身が発行するCookie名。バックエンドへは転送しない。
	Internal []string
}

// NewForwardMiddleware はブラウザとバックエンドの間でCookieを中継する。
//   - 受信したCookie（Internalを除く）をゲートウェイ呼び出しへ転送する
//   - ゲートウェイが返したSet-Cookieを、レスポンスヘッダーの書き込み直前にブラウザへ中継する
func NewForwardMiddleware(config ForwardConfig) func(next http.Handler) http.Handler {
	internal := make(map[string]bool, len(config.Internal))
	for _, name := range config.Internal {
		internal[name] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var forwarded []*http.Cookie
			for _, c := range r.Cookies() {
				if !internal[c.Name] {
					forwarded = append(forwarded, c)
				}
			}

			sink := gateway.NewCookieSink()
			ctx := gateway.WithCookies(r.Context(), forwarded)
			ctx = gateway.WithCookieSink(ctx, sink)

			rw := &cookieRelayWriter{ResponseWriter: w, sink: sink, config: config}
			next.ServeHTTP(rw, r.WithContext(ctx))
			rw.flushCookies()
		})
	}
}

// cookieRelayWriter はヘッダー書き込みの直前にシンクのCookieをSet-Cookieとして付与する。
type cookieRelayWriter struct {
	http.ResponseWriter
	sink    *gateway.CookieSink
	config  ForwardConfig
	written bool
}

func (cw *cookieRelayWriter) WriteHeader(code int) {
	cw.flushCookies()
	cw.written = true
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *cookieRelayWriter) Write(b []byte) (int, error) {
	if !cw.written {
		cw.flushCookies()
		cw.written = true
	}
	return cw.ResponseWriter.Write(b)
}

// Unwrap はhttp.ResponseControllerのために元のライターを返す。
func (cw *cookieRelayWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}

func (cw *cookieRelayWriter) flushCookies() {
	if cw.written {
		return
	}
	for _, c := range cw.sink.Drain() {
		c.Domain = cw.config.CookieDomain
		if cw.config.CookieSecure {
			c.Secure = true
		}
		http.SetCookie(cw.ResponseWriter, c)
	}
}
