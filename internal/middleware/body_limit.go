package middleware

import (
	"errors"
	"net/http"
)

// NewBodyLimitMiddleware は状態変更リクエストのボディをmaxバイトに制限する。
// 上限を超えた読み取りは*http.MaxBytesErrorになる。
// フォームを解析するCSRFミドルウェアより前に配置する。maxが0以下なら制限しない。
func NewBodyLimitMiddleware(max int64) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if max > 0 && !isSafeMethod(r.Method) && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, max)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IsBodyTooLarge はerrがボディの上限超過によるものかを返す。
func IsBodyTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}
