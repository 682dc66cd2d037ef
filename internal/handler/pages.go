// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/orbit/internal/board"
	"github.com/hitoshi/orbit/internal/gateway"
	"github.com/hitoshi/orbit/internal/market"
	"github.com/hitoshi/orbit/internal/middleware"
	"github.com/hitoshi/orbit/internal/model"
	"github.com/hitoshi/orbit/internal/view"
)

// 画面に表示する案内文。リダイレクト先へはコードだけを渡し、文言はここで決める。
const (
	NoticeLoginRequired   = "login_required"
	NoticeLoggedIn        = "logged_in"
	NoticeLoggedOut       = "logged_out"
	NoticeRegistered      = "registered"
	NoticePostCreated     = "post_created"
	NoticePostUpdated     = "post_updated"
	NoticePostDeleted     = "post_deleted"
	NoticeDeleteFailed    = "delete_failed"
	NoticeCommentEmpty    = "comment_empty"
	NoticeCommentFailed   = "comment_failed"
	NoticePasswordChanged = "password_changed"
)

var noticeMessages = map[string]string{
	NoticeLoginRequired:   "로그인이 필요합니다.",
	NoticeLoggedIn:        "로그인 성공!",
	NoticeLoggedOut:       "로그아웃 되었습니다.",
	NoticeRegistered:      "회원가입 성공! 로그인해 주세요.",
	NoticePostCreated:     "게시글이 작성되었습니다.",
	NoticePostUpdated:     "게시글이 수정되었습니다.",
	NoticePostDeleted:     "게시글이 삭제되었습니다.",
	NoticeDeleteFailed:    "게시글 삭제에 실패했습니다.",
	NoticeCommentEmpty:    "댓글 내용을 입력해주세요.",
	NoticeCommentFailed:   "댓글 처리에 실패했습니다. 다시 시도해 주세요.",
	NoticePasswordChanged: "비밀번호가 성공적으로 변경되었습니다.",
}

// PageRenderer はページ描画のインターフェース。
type PageRenderer interface {
	Render(w http.ResponseWriter, status int, name string, page *view.Page)
	RenderWidget(w http.ResponseWriter, snap *market.Snapshot)
}

// UserLookup はヘッダーや作成者名の表示に使うユーザー取得のインターフェース。
type UserLookup interface {
	GetUser(ctx context.Context, userID string) gateway.Result[model.User]
}

// pageBuilder は全ページ共通のデータ（ヘッダー、CSRFトークン、案内文）を組み立てる。
type pageBuilder struct {
	renderer PageRenderer
	users    UserLookup
}

// page はリクエストのセッション状態から共通データを作る。
// セッション状態はミドルウェアで解決済みの値を読むだけで、ここで再確認はしない。
func (b *pageBuilder) page(r *http.Request, title string, data any) *view.Page {
	ctx := r.Context()
	p := &view.Page{
		Title:     title,
		Path:      r.URL.Path,
		CSRFToken: middleware.CSRFTokenFromContext(ctx),
		Notice:    noticeMessages[r.URL.Query().Get("notice")],
		Data:      data,
	}

	st := middleware.SessionFromContext(ctx)
	if st.LoggedIn() {
		p.Header = view.Header{
			LoggedIn: true,
			UserID:   st.UserID,
			UserName: b.userName(ctx, st.UserID),
		}
	}
	return p
}

func (b *pageBuilder) userName(ctx context.Context, userID string) string {
	res := b.users.GetUser(ctx, userID)
	if !res.OK() || res.Value.Name == "" {
		return board.UnknownAuthor
	}
	return res.Value.Name
}

func (b *pageBuilder) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	b.renderer.Render(w, status, name, b.page(r, title, data))
}

// renderError はエラーページを描画する。
func (b *pageBuilder) renderError(w http.ResponseWriter, r *http.Request, status int, apiErr *model.APIError) {
	b.render(w, r, status, view.PageError, "오류", view.ErrorData{
		Status:  status,
		Message: apiErr.Message,
		Action:  apiErr.Action,
	})
}

// renderFailure はゲートウェイの失敗を種別に応じたエラーページにする。
func (b *pageBuilder) renderFailure(w http.ResponseWriter, r *http.Request, f *gateway.Failure, notFound *model.APIError) {
	switch f.Kind {
	case gateway.KindNotFound:
		b.renderError(w, r, http.StatusNotFound, notFound)
	case gateway.KindUnauthorized:
		b.renderError(w, r, http.StatusForbidden, model.NewForbiddenError())
	default:
		b.renderError(w, r, http.StatusBadGateway, model.NewGatewayUnavailableError())
	}
}

// NotFound は未定義のパスに対するページ。
func (b *pageBuilder) NotFound(w http.ResponseWriter, r *http.Request) {
	b.renderError(w, r, http.StatusNotFound, &model.APIError{
		Code:     "NOT_FOUND",
		Message:  "페이지를 찾을 수 없습니다.",
		Category: "system",
		Action:   "주소를 확인해 주세요.",
	})
}

// redirectWithNotice は案内文付きで303リダイレクトする。
func redirectWithNotice(w http.ResponseWriter, r *http.Request, path, notice, fragment string) {
	target := path
	if notice != "" {
		target += "?notice=" + notice
	}
	if fragment != "" {
		target += "#" + fragment
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// int64Param はURLパラメータを正の整数として読む。
func int64Param(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// sessionUserID はログイン中のユーザーIDを返す。未ログインなら空文字。
func sessionUserID(r *http.Request) string {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		return ""
	}
	return userID
}
