package gateway

import (
	"context"
	"net/http"
	"sync"
)

type contextKey string

const (
	cookiesKey   contextKey = "gateway_cookies"
	requestIDKey contextKey = "gateway_request_id"
	sinkKey      contextKey = "gateway_cookie_sink"
)

// WithCookies はゲートウェイへ転送するブラウザのCookieをコンテキストに設定する。
func WithCookies(ctx context.Context, cookies []*http.Cookie) context.Context {
	return context.WithValue(ctx, cookiesKey, cookies)
}

// CookiesFromContext は転送対象のCookieを返す。
func CookiesFromContext(ctx context.Context) []*http.Cookie {
	cookies, _ := ctx.Value(cookiesKey).([]*http.Cookie)
	return cookies
}

// WithRequestID はX-Request-IDとして転送するリクエストIDを設定する。
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext は転送するリクエストIDを返す。
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// CookieSink はゲートウェイのSet-Cookieを集め、ブラウザへの応答に中継する。
// 同一リクエスト内の複数ゴルーチンから追加されうる。
type CookieSink struct {
	mu      sync.Mutex
	cookies []*http.Cookie
}

// NewCookieSink は空のCookieSinkを生成する。
func NewCookieSink() *CookieSink {
	return &CookieSink{}
}

// Add はCookieを追加する。同名のCookieは後勝ちで置き換える。
func (s *CookieSink) Add(cookies ...*http.Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range cookies {
		replaced := false
		for i, existing := range s.cookies {
			if existing.Name == c.Name && existing.Path == c.Path {
				s.cookies[i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			s.cookies = append(s.cookies, c)
		}
	}
}

// Drain は集めたCookieを返し、内部状態を空にする。
func (s *CookieSink) Drain() []*http.Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.cookies
	s.cookies = nil
	return out
}

// WithCookieSink はSet-Cookieの中継先をコンテキストに設定する。
func WithCookieSink(ctx context.Context, sink *CookieSink) context.Context {
	return context.WithValue(ctx, sinkKey, sink)
}

// CookieSinkFromContext は中継先のCookieSinkを返す。未設定の場合はnil。
func CookieSinkFromContext(ctx context.Context) *CookieSink {
	sink, _ := ctx.Value(sinkKey).(*CookieSink)
	return sink
}

// applyForwarding はコンテキストの転送情報をリクエストに反映する。
func applyForwarding(ctx context.Context, req *http.Request) {
	for _, c := range CookiesFromContext(ctx) {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	if id := RequestIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}
}

// relaySetCookies はレスポンスのSet-Cookieを中継先に積む。
func relaySetCookies(ctx context.Context, resp *http.Response) {
	sink := CookieSinkFromContext(ctx)
	if sink == nil {
		return
	}
	if cookies := resp.Cookies(); len(cookies) > 0 {
		sink.Add(cookies...)
	}
}
