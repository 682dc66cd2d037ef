package security

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/orbit/internal/gateway"
)

var (
	// ErrAttachmentBlocked は添付ファイルのURLがSSRF検証で拒否されたことを示す。
	ErrAttachmentBlocked = errors.New("attachment URL blocked")
	// ErrAttachmentTooLarge は添付ファイルがサイズ上限を超えたことを示す。
	ErrAttachmentTooLarge = errors.New("attachment exceeds size limit")
	// ErrAttachmentNotFound は取得先が404を返したことを示す。
	ErrAttachmentNotFound = errors.New("attachment not found")
)

// Attachment は取得した添付ファイルの内容。
type Attachment struct {
	ContentType string
	Data        []byte
}

// AttachmentFetcher は投稿の添付ファイルをブラウザに中継するために取得する。
//
// filePathがゲートウェイ上のパス（相対パスまたはゲートウェイと同じオリジン）なら
// 添付専用のクライアントでCookieを転送して取得する。リダイレクト先が別オリジンならSSRF検証を通す。
// それ以外のホストはSSRF検証を通したうえでsafeurlのクライアントで取得し、Cookieは送らない。
type AttachmentFetcher struct {
	base     *url.URL
	internal *http.Client
	external *http.Client
	guard    SSRFGuardService
	maxSize  int64
	logger   *slog.Logger
}

// maxAttachmentRedirects は同一オリジン取得で追うリダイレクトの上限。
const maxAttachmentRedirects = 5

// NewAttachmentFetcher はAttachmentFetcherを生成する。
// transportがnilならhttp.DefaultTransportを使う。タイムアウトはゲートウェイ呼び出しとは別にtimeoutで切る。
func NewAttachmentFetcher(baseURL string, transport http.RoundTripper, guard SSRFGuardService, timeout time.Duration, maxSize int64, logger *slog.Logger) (*AttachmentFetcher, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid gateway base URL %q", baseURL)
	}
	f := &AttachmentFetcher{
		base:     base,
		external: guard.NewSafeClient(timeout),
		guard:    guard,
		maxSize:  maxSize,
		logger:   logger,
	}
	f.internal = &http.Client{
		Transport:     transport,
		Timeout:       timeout,
		CheckRedirect: f.checkRedirect,
	}
	return f, nil
}

// checkRedirect はゲートウェイからのリダイレクトのうち、別オリジン宛のものをSSRF検証する。
func (f *AttachmentFetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxAttachmentRedirects {
		return fmt.Errorf("stopped after %d redirects", len(via))
	}
	if f.isSameOrigin(req.URL) {
		return nil
	}
	if err := f.guard.ValidateURL(req.URL.String()); err != nil {
		f.logger.Warn("添付ファイルのリダイレクト先を拒否しました",
			slog.String("url", req.URL.Redacted()),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %v", ErrAttachmentBlocked, err)
	}
	return nil
}

func (f *AttachmentFetcher) isSameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, f.base.Scheme) && strings.EqualFold(u.Host, f.base.Host)
}

// Fetch はfilePathの内容を取得する。
func (f *AttachmentFetcher) Fetch(ctx context.Context, filePath string) (*Attachment, error) {
	target, sameOrigin, err := f.resolve(filePath)
	if err != nil {
		return nil, err
	}

	client := f.internal
	if !sameOrigin {
		if err := f.guard.ValidateURL(target.String()); err != nil {
			f.logger.Warn("添付ファイルのURLを拒否しました",
				slog.String("url", target.Redacted()),
				slog.String("error", err.Error()),
			)
			return nil, fmt.Errorf("%w: %v", ErrAttachmentBlocked, err)
		}
		client = f.external
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if sameOrigin {
		for _, c := range gateway.CookiesFromContext(ctx) {
			req.AddCookie(c)
		}
		if id := gateway.RequestIDFromContext(ctx); id != "" {
			req.Header.Set("X-Request-ID", id)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attachment: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrAttachmentNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("unexpected status code %d for attachment", resp.StatusCode)
	}
	if resp.ContentLength > f.maxSize {
		return nil, ErrAttachmentTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, ErrAttachmentTooLarge
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return &Attachment{ContentType: ct, Data: data}, nil
}

// resolve はfilePathをゲートウェイ基準で絶対URLにし、ゲートウェイと同一オリジンかを返す。
func (f *AttachmentFetcher) resolve(filePath string) (*url.URL, bool, error) {
	p := strings.TrimSpace(filePath)
	if p == "" {
		return nil, false, fmt.Errorf("%w: empty file path", ErrAttachmentBlocked)
	}
	ref, err := url.Parse(p)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrAttachmentBlocked, err)
	}
	if !ref.IsAbs() && ref.Host == "" {
		// "files/a.png"のような相対パスもゲートウェイのルートからとして扱う
		if !strings.HasPrefix(ref.Path, "/") {
			ref.Path = "/" + ref.Path
		}
		return f.base.ResolveReference(ref), true, nil
	}
	if ref.Scheme == "" {
		ref.Scheme = f.base.Scheme
	}
	return ref, f.isSameOrigin(ref), nil
}
