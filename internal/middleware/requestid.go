package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/hitoshi/orbit/internal/gateway"
)

// RequestIDHeader はリクエストIDを運ぶヘッダー名。
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 64

// NewRequestIDMiddleware はリクエストIDを決定してコンテキストとレスポンスヘッダーに設定する。
// 受信ヘッダーの値が安全な文字だけで構成されていればそれを使い、なければUUIDを生成する。
// ゲートウェイクライアントはこの値をバックエンドへ転送する。
func NewRequestIDMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if !validRequestID(id) {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(gateway.WithRequestID(r.Context(), id)))
		})
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}
