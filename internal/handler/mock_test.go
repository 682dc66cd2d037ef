package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/orbit/internal/board"
	"github.com/hitoshi/orbit/internal/gateway"
	"github.com/hitoshi/orbit/internal/market"
	"github.com/hitoshi/orbit/internal/middleware"
	"github.com/hitoshi/orbit/internal/model"
	"github.com/hitoshi/orbit/internal/security"
	"github.com/hitoshi/orbit/internal/session"
	"github.com/hitoshi/orbit/internal/user"
	"github.com/hitoshi/orbit/internal/view"
)

// --- モック定義 ---

// mockUserService はUserServiceのモック実装。
type mockUserService struct {
	loginFn          func(ctx context.Context, email, password string) gateway.Result[string]
	logoutFn         func(ctx context.Context) gateway.Result[gateway.Empty]
	registerFn       func(ctx context.Context, form user.RegisterForm) gateway.Result[model.User]
	getUserFn        func(ctx context.Context, userID string) gateway.Result[model.User]
	changePasswordFn func(ctx context.Context, userID string, form user.PasswordChangeForm) gateway.Result[string]
}

func (m *mockUserService) Login(ctx context.Context, email, password string) gateway.Result[string] {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return gateway.Succeed("ok")
}

func (m *mockUserService) Logout(ctx context.Context) gateway.Result[gateway.Empty] {
	if m.logoutFn != nil {
		return m.logoutFn(ctx)
	}
	return gateway.Succeed(gateway.Empty{})
}

func (m *mockUserService) Register(ctx context.Context, form user.RegisterForm) gateway.Result[model.User] {
	if m.registerFn != nil {
		return m.registerFn(ctx, form)
	}
	return gateway.Succeed(model.User{UserID: "new-user", Email: form.Email, Name: form.Name})
}

func (m *mockUserService) GetUser(ctx context.Context, userID string) gateway.Result[model.User] {
	if m.getUserFn != nil {
		return m.getUserFn(ctx, userID)
	}
	return gateway.Succeed(model.User{UserID: userID, Email: userID + "@example.com", Name: "이름-" + userID})
}

func (m *mockUserService) ChangePassword(ctx context.Context, userID string, form user.PasswordChangeForm) gateway.Result[string] {
	if m.changePasswordFn != nil {
		return m.changePasswordFn(ctx, userID, form)
	}
	return gateway.Succeed("changed")
}

// mockBoardService はBoardServiceのモック実装。
type mockBoardService struct {
	listPostsFn     func(ctx context.Context, q board.ListQuery) gateway.Result[model.Page[model.Post]]
	searchPostsFn   func(ctx context.Context, keyword string, q board.ListQuery) gateway.Result[model.Page[model.Post]]
	getPostFn       func(ctx context.Context, postID int64) gateway.Result[model.Post]
	createPostFn    func(ctx context.Context, userID string, in model.PostInput) gateway.Result[model.Post]
	updatePostFn    func(ctx context.Context, postID int64, userID string, in model.PostInput) gateway.Result[model.Post]
	deletePostFn    func(ctx context.Context, postID int64, userID string) gateway.Result[gateway.Empty]
	listCommentsFn  func(ctx context.Context, postID int64) gateway.Result[[]model.Comment]
	createCommentFn func(ctx context.Context, userID string, postID int64, content string) gateway.Result[model.Comment]
	updateCommentFn func(ctx context.Context, commentID int64, userID string, content string) gateway.Result[model.Comment]
	deleteCommentFn func(ctx context.Context, commentID int64, userID string) gateway.Result[gateway.Empty]
}

func (m *mockBoardService) ListPosts(ctx context.Context, q board.ListQuery) gateway.Result[model.Page[model.Post]] {
	if m.listPostsFn != nil {
		return m.listPostsFn(ctx, q)
	}
	return gateway.Succeed(model.Page[model.Post]{})
}

func (m *mockBoardService) SearchPosts(ctx context.Context, keyword string, q board.ListQuery) gateway.Result[model.Page[model.Post]] {
	if m.searchPostsFn != nil {
		return m.searchPostsFn(ctx, keyword, q)
	}
	return gateway.Succeed(model.Page[model.Post]{})
}

func (m *mockBoardService) GetPost(ctx context.Context, postID int64) gateway.Result[model.Post] {
	if m.getPostFn != nil {
		return m.getPostFn(ctx, postID)
	}
	return gateway.Fail[model.Post](&gateway.Failure{Kind: gateway.KindNotFound, Status: http.StatusNotFound})
}

func (m *mockBoardService) CreatePost(ctx context.Context, userID string, in model.PostInput) gateway.Result[model.Post] {
	if m.createPostFn != nil {
		return m.createPostFn(ctx, userID, in)
	}
	return gateway.Succeed(model.Post{ID: 1, UserID: userID, Title: in.Title, Content: in.Content})
}

func (m *mockBoardService) UpdatePost(ctx context.Context, postID int64, userID string, in model.PostInput) gateway.Result[model.Post] {
	if m.updatePostFn != nil {
		return m.updatePostFn(ctx, postID, userID, in)
	}
	return gateway.Succeed(model.Post{ID: postID, UserID: userID, Title: in.Title, Content: in.Content})
}

func (m *mockBoardService) DeletePost(ctx context.Context, postID int64, userID string) gateway.Result[gateway.Empty] {
	if m.deletePostFn != nil {
		return m.deletePostFn(ctx, postID, userID)
	}
	return gateway.Succeed(gateway.Empty{})
}

func (m *mockBoardService) ListComments(ctx context.Context, postID int64) gateway.Result[[]model.Comment] {
	if m.listCommentsFn != nil {
		return m.listCommentsFn(ctx, postID)
	}
	return gateway.Succeed([]model.Comment{})
}

func (m *mockBoardService) CreateComment(ctx context.Context, userID string, postID int64, content string) gateway.Result[model.Comment] {
	if m.createCommentFn != nil {
		return m.createCommentFn(ctx, userID, postID, content)
	}
	return gateway.Succeed(model.Comment{ID: 1, PostID: postID, UserID: userID, Content: content})
}

func (m *mockBoardService) UpdateComment(ctx context.Context, commentID int64, userID string, content string) gateway.Result[model.Comment] {
	if m.updateCommentFn != nil {
		return m.updateCommentFn(ctx, commentID, userID, content)
	}
	return gateway.Succeed(model.Comment{ID: commentID, UserID: userID, Content: content})
}

func (m *mockBoardService) DeleteComment(ctx context.Context, commentID int64, userID string) gateway.Result[gateway.Empty] {
	if m.deleteCommentFn != nil {
		return m.deleteCommentFn(ctx, commentID, userID)
	}
	return gateway.Succeed(gateway.Empty{})
}

// mockSessions はSessionResolverInvalidatorのモック実装。
type mockSessions struct {
	mu          sync.Mutex
	resolveFn   func(ctx context.Context, key string) session.Status
	invalidated []string
}

func (m *mockSessions) Resolve(ctx context.Context, key string) session.Status {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, key)
	}
	return session.LoggedOut()
}

func (m *mockSessions) Invalidate(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, key)
}

func (m *mockSessions) invalidateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.invalidated)
}

// mockAttachmentFetcher はAttachmentFetcherのモック実装。
type mockAttachmentFetcher struct {
	fetchFn func(ctx context.Context, filePath string) (*security.Attachment, error)
}

func (m *mockAttachmentFetcher) Fetch(ctx context.Context, filePath string) (*security.Attachment, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, filePath)
	}
	return nil, security.ErrAttachmentNotFound
}

// mockSource はmarket.Sourceのモック実装。
type mockSource struct {
	summaryFn func(ctx context.Context, d *market.Descriptor, code string) gateway.Result[model.Summary]
	seriesFn  func(ctx context.Context, d *market.Descriptor, code, period string) gateway.Result[model.ChartSeries]
}

func (m *mockSource) Summary(ctx context.Context, d *market.Descriptor, code string) gateway.Result[model.Summary] {
	if m.summaryFn != nil {
		return m.summaryFn(ctx, d, code)
	}
	return gateway.Succeed(model.Summary{
		CurrencyCode: code,
		ExchangeRate: decimal.NewNullDecimal(decimal.RequireFromString("1380.5")),
		ChangeRate:   decimal.NewNullDecimal(decimal.RequireFromString("0.42")),
		Timestamp:    "2026-10-19T09:30:00",
	})
}

func (m *mockSource) Series(ctx context.Context, d *market.Descriptor, code, period string) gateway.Result[model.ChartSeries] {
	if m.seriesFn != nil {
		return m.seriesFn(ctx, d, code, period)
	}
	return gateway.Succeed(model.ChartSeries{
		Labels: []string{"2026-10-19T09:00:00", "2026-10-19T09:30:00"},
		Datasets: []model.Dataset{{
			Label: code,
			Data:  []decimal.Decimal{decimal.RequireFromString("1379"), decimal.RequireFromString("1380.5")},
		}},
	})
}

// --- テストヘルパー ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRenderer(t *testing.T) *view.Renderer {
	t.Helper()
	r, err := view.NewRenderer(discardLogger())
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	return r
}

func newTestRegistry(t *testing.T, src market.Source) *market.Registry {
	t.Helper()
	catalog, err := market.LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	reg := market.NewRegistry(catalog, src, market.RegistryConfig{Concurrency: 2}, discardLogger(), nil)
	t.Cleanup(reg.Stop)
	return reg
}

func newTestPages(t *testing.T, users UserLookup) *pageBuilder {
	t.Helper()
	return &pageBuilder{renderer: newTestRenderer(t), users: users}
}

// testDeps はテスト用のRouterDepsを返す。各フィールドはテストごとに差し替える。
func testDeps(t *testing.T) *RouterDeps {
	t.Helper()
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(6000, 6000), discardLogger())
	t.Cleanup(rl.Stop)
	return &RouterDeps{
		Logger:            discardLogger(),
		Sessions:          &mockSessions{},
		RateLimiter:       rl,
		CORSAllowedOrigin: "http://localhost:3000",
		Renderer:          newTestRenderer(t),
		Markets:           newTestRegistry(t, &mockSource{}),
		Users:             &mockUserService{},
		Posts:             &mockBoardService{},
		Sanitizer:         security.NewContentSanitizer(),
		Attachments:       &mockAttachmentFetcher{},
		BaseURL:           "https://orbit.example.com",
	}
}

// loggedInAs は指定ユーザーでログイン済みとして解決するセッションを返す。
func loggedInAs(userID string) *mockSessions {
	return &mockSessions{
		resolveFn: func(ctx context.Context, key string) session.Status {
			if key == "" {
				return session.LoggedOut()
			}
			return session.Status{State: session.StateLoggedIn, UserID: userID}
		},
	}
}

// withUserID はテスト用にリクエストコンテキストへログイン状態を注入する。
func withUserID(r *http.Request, userID string) *http.Request {
	st := session.Status{State: session.StateLoggedIn, UserID: userID}
	return r.WithContext(middleware.ContextWithSession(r.Context(), st))
}

// authCookie はバックエンド発行の認証Cookie。
func authCookie() *http.Cookie {
	return &http.Cookie{Name: "accessToken", Value: "token-abc"}
}

// postForm はCSRFトークン付きのフォーム送信リクエストを作る。
func postForm(target string, form url.Values) *http.Request {
	const token = "test-csrf-token"
	if form == nil {
		form = url.Values{}
	}
	form.Set(middleware.CSRFFieldName, token)
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: middleware.CSRFCookieName, Value: token})
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func notFoundPost() gateway.Result[model.Post] {
	return gateway.Fail[model.Post](&gateway.Failure{Kind: gateway.KindNotFound, Status: http.StatusNotFound})
}

func serverFailure[T any]() gateway.Result[T] {
	return gateway.Fail[T](&gateway.Failure{Kind: gateway.KindServer, Status: http.StatusInternalServerError, Body: "boom"})
}
