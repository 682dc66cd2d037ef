// Package gateway はAPIゲートウェイ経由でバックエンドのマイクロサービスを呼び出す。
// 全てのAPIラッパーはここの型付きリクエストヘルパーを通して通信し、
// 例外ではなく成功/失敗の判別可能な結果を受け取る。
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/orbit/internal/metrics"
)

const (
	// maxBodyBytes はレスポンスボディ読み取りの上限。
	maxBodyBytes = 4 << 20
	// maxLoggedBody はログに残すエラーボディの最大長。
	maxLoggedBody = 512
)

var errEmptyBody = errors.New("レスポンスボディが空です")

// Request はゲートウェイへの1回の呼び出しを表す。
// JSONとMultipartは排他で、両方nilならボディなしで送信する。
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	JSON      any
	Multipart *Multipart
}

// Empty はボディを解釈しない呼び出しの結果型。
type Empty struct{}

// Client はAPIゲートウェイのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	metrics    metrics.MetricsCollector
}

// Option はClientの任意設定。
type Option func(*Client)

// WithMetrics は呼び出し結果とレイテンシの記録先を設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLの末尾スラッシュは取り除く。
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL はゲートウェイのオリジンを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do はゲートウェイを呼び出し、2xxのボディをTとして解釈した結果を返す。
// Tがstringならボディをそのまま、Emptyならボディを読み捨てる。
func Do[T any](ctx context.Context, c *Client, req Request) Result[T] {
	start := time.Now()
	service := serviceOf(req.Path)

	body, status, f := c.send(ctx, req)

	var v T
	if f == nil {
		if err := decodeInto(&v, body); err != nil {
			f = &Failure{
				Kind:   KindDecode,
				Status: status,
				Method: req.Method,
				Path:   req.Path,
				Body:   truncate(string(body)),
				Err:    err,
			}
		}
	}

	c.record(service, status, f, time.Since(start))

	if f != nil {
		c.logFailure(service, f)
		return Fail[T](f)
	}
	return Succeed(v)
}

// send はリクエストを送信し、ボディとステータスを返す。
// 非2xxと通信エラーはFailureとして返す。
func (c *Client) send(ctx context.Context, r Request) ([]byte, int, *Failure) {
	fail := func(kind Kind, status int, body string, err error) *Failure {
		return &Failure{Kind: kind, Status: status, Method: r.Method, Path: r.Path, Body: body, Err: err}
	}

	u := c.baseURL + r.Path
	if len(r.Query) > 0 {
		u += "?" + r.Query.Encode()
	}

	var (
		reqBody     io.Reader
		contentType string
	)
	switch {
	case r.JSON != nil:
		b, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, 0, fail(KindClient, 0, "", fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err))
		}
		reqBody = bytes.NewReader(b)
		contentType = "application/json"
	case r.Multipart != nil:
		b, ct, err := r.Multipart.encode()
		if err != nil {
			return nil, 0, fail(KindClient, 0, "", err)
		}
		reqBody = b
		contentType = ct
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, u, reqBody)
	if err != nil {
		return nil, 0, fail(KindClient, 0, "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Orbit/1.0")
	applyForwarding(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fail(KindNetwork, 0, "", err)
	}
	defer resp.Body.Close()

	relaySetCookies(ctx, resp)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fail(KindNetwork, resp.StatusCode, "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err))
	}

	if kind := ClassifyStatus(resp.StatusCode); kind != "" {
		return body, resp.StatusCode, fail(kind, resp.StatusCode, string(body), nil)
	}
	return body, resp.StatusCode, nil
}

// decodeInto はボディを結果型に詰める。
func decodeInto[T any](out *T, body []byte) error {
	switch p := any(out).(type) {
	case *Empty:
		return nil
	case *string:
		*p = string(body)
		return nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return errEmptyBody
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}

func (c *Client) record(service string, status int, f *Failure, d time.Duration) {
	if c.metrics == nil {
		return
	}
	outcome := "ok"
	if f != nil {
		outcome = string(f.Kind)
	}
	c.metrics.RecordGatewayRequest(service, outcome, status)
	c.metrics.RecordGatewayLatency(service, d)
}

// logFailure は失敗を種別に応じたレベルで記録する。
// 未ログインや期間データなしは通常の分岐のためDebugに留める。
func (c *Client) logFailure(service string, f *Failure) {
	level := slog.LevelError
	switch f.Kind {
	case KindUnauthorized, KindNotFound:
		level = slog.LevelDebug
	case KindClient:
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{
		slog.String("service", service),
		slog.String("method", f.Method),
		slog.String("path", f.Path),
		slog.Int("status", f.Status),
		slog.String("kind", string(f.Kind)),
	}
	if f.Err != nil {
		attrs = append(attrs, slog.String("error", f.Err.Error()))
	}
	if f.Body != "" {
		attrs = append(attrs, slog.String("body", truncate(f.Body)))
	}
	c.logger.LogAttrs(context.Background(), level, "ゲートウェイ呼び出しに失敗しました", attrs...)
}

// serviceOf はパス先頭のセグメントをサービス名として返す。
func serviceOf(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[:i]
	}
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}

func truncate(s string) string {
	if len(s) <= maxLoggedBody {
		return s
	}
	return s[:maxLoggedBody]
}
