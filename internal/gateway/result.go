package gateway

import (
	"fmt"
	"net/http"
	"strings"
)

// Kind はゲートウェイ呼び出しの失敗種別。
type Kind string

const (
	// KindNetwork は通信エラー・タイムアウト・キャンセル。
	KindNetwork Kind = "network"
	// KindUnauthorized は認証・認可エラー（401/403）。
	KindUnauthorized Kind = "unauthorized"
	// KindNotFound はリソース未検出（404）。
	KindNotFound Kind = "not_found"
	// KindClient はその他の4xx。
	KindClient Kind = "client"
	// KindServer は5xx。
	KindServer Kind = "server"
	// KindDecode はレスポンスボディの解釈失敗。
	KindDecode Kind = "decode"
)

// ClassifyStatus はHTTPステータスコードを失敗種別に分類する。
// 2xxは失敗ではないため空文字を返す。
func ClassifyStatus(statusCode int) Kind {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return ""
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return KindUnauthorized
	case statusCode == http.StatusNotFound:
		return KindNotFound
	case statusCode >= 500:
		return KindServer
	default:
		return KindClient
	}
}

// Failure はゲートウェイ呼び出しの失敗を表す。
// Bodyはバックエンドのエラーメッセージ文字列の照合に使う。
type Failure struct {
	Kind   Kind
	Status int
	Method string
	Path   string
	Body   string
	Err    error
}

// Error はerrorインターフェースを実装する。
func (f *Failure) Error() string {
	switch {
	case f.Err != nil:
		return fmt.Sprintf("gateway %s %s: %s: %v", f.Method, f.Path, f.Kind, f.Err)
	case f.Status != 0:
		return fmt.Sprintf("gateway %s %s: %s (status %d)", f.Method, f.Path, f.Kind, f.Status)
	default:
		return fmt.Sprintf("gateway %s %s: %s", f.Method, f.Path, f.Kind)
	}
}

// Unwrap は原因エラーを返す。
func (f *Failure) Unwrap() error {
	return f.Err
}

// BodyContains はレスポンスボディに指定文字列が含まれるかを返す。
func (f *Failure) BodyContains(s string) bool {
	return f != nil && strings.Contains(f.Body, s)
}

// Result はゲートウェイ呼び出しの結果。ValueかFailureのどちらか一方を持つ。
type Result[T any] struct {
	Value   T
	Failure *Failure
}

// OK は呼び出しが成功したかを返す。
func (r Result[T]) OK() bool {
	return r.Failure == nil
}

// Err は失敗時にFailureをerrorとして返す。成功時はnil。
func (r Result[T]) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}

// Is は失敗種別が一致するかを返す。成功時は常にfalse。
func (r Result[T]) Is(kind Kind) bool {
	return r.Failure != nil && r.Failure.Kind == kind
}

// Succeed は成功結果を生成する。
func Succeed[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail は失敗結果を生成する。
func Fail[T any](f *Failure) Result[T] {
	return Result[T]{Failure: f}
}

