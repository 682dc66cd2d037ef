package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/orbit/internal/middleware"
	"github.com/hitoshi/orbit/internal/model"
	"github.com/hitoshi/orbit/internal/user"
	"github.com/hitoshi/orbit/internal/view"
)

const (
	msgUserLoadFailed       = "사용자 정보 로딩 실패"
	msgPasswordChangeFailed = "비밀번호 변경에 실패했습니다. 다시 시도해 주세요."
)

// UserHandler はユーザー情報画面のHTTPハンドラー。
type UserHandler struct {
	users    UserService
	sessions SessionInvalidator
	pages    *pageBuilder
	logger   *slog.Logger
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(users UserService, sessions SessionInvalidator, pages *pageBuilder, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:    users,
		sessions: sessions,
		pages:    pages,
		logger:   logger,
	}
}

// Info はユーザー情報とパスワード変更フォームを描画する。
// GET /user-info
func (h *UserHandler) Info(w http.ResponseWriter, r *http.Request) {
	data, ok := h.load(r)
	page := h.pages.page(r, "내 정보", data)
	if !ok {
		page.Error = msgUserLoadFailed
	}
	h.pages.renderer.Render(w, http.StatusOK, view.PageUserInfo, page)
}

// ChangePassword はパスワードを変更する。
// 現在のパスワードの誤りなら現在のパスワード欄だけを空にし、それ以外の失敗は入力を保つ。
// POST /user-info
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	form := user.PasswordChangeForm{
		OldPassword:     r.FormValue("old_password"),
		NewPassword:     r.FormValue("new_password"),
		ConfirmPassword: r.FormValue("confirm_password"),
	}
	data, _ := h.load(r)
	data.OldPassword = form.OldPassword
	data.NewPassword = form.NewPassword
	data.ConfirmPassword = form.ConfirmPassword

	if apiErr := user.ValidatePasswordChange(form); apiErr != nil {
		h.renderInfo(w, r, http.StatusBadRequest, data, apiErr.Message)
		return
	}

	userID := sessionUserID(r)
	res := h.users.ChangePassword(r.Context(), userID, form)
	if !res.OK() {
		if user.IsOldPasswordIncorrect(res.Failure) {
			data.OldPassword = ""
			h.renderInfo(w, r, http.StatusBadRequest, data, model.NewOldPasswordIncorrectError().Message)
			return
		}
		h.logger.Warn("password change failed",
			slog.String("user_id", userID),
			slog.String("error", res.Err().Error()),
		)
		h.renderInfo(w, r, http.StatusBadGateway, data, msgPasswordChangeFailed)
		return
	}

	h.sessions.Invalidate(middleware.SessionKeyFromContext(r.Context()))
	redirectWithNotice(w, r, "/user-info", NoticePasswordChanged, "")
}

func (h *UserHandler) load(r *http.Request) (view.UserInfoData, bool) {
	res := h.users.GetUser(r.Context(), sessionUserID(r))
	if !res.OK() {
		return view.UserInfoData{}, false
	}
	return view.UserInfoData{User: res.Value}, true
}

func (h *UserHandler) renderInfo(w http.ResponseWriter, r *http.Request, status int, data view.UserInfoData, message string) {
	page := h.pages.page(r, "내 정보", data)
	page.Error = message
	h.pages.renderer.Render(w, status, view.PageUserInfo, page)
}
