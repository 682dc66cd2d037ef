package handler

import (
	"net/http"
	"strconv"

	"github.com/hitoshi/orbit/internal/board"
	"github.com/hitoshi/orbit/internal/model"
)

// CreateComment は投稿にコメントを追加する。
// POST /board/{postID}/comments
func (h *BoardHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	postID, ok := int64Param(r, "postID")
	if !ok {
		h.pages.renderError(w, r, http.StatusNotFound, model.NewPostNotFoundError(0))
		return
	}
	content := r.FormValue("content")
	if apiErr := board.ValidateComment(content); apiErr != nil {
		redirectWithNotice(w, r, postPath(postID), NoticeCommentEmpty, "comments")
		return
	}

	res := h.posts.CreateComment(r.Context(), sessionUserID(r), postID, content)
	if !res.OK() {
		redirectWithNotice(w, r, postPath(postID), NoticeCommentFailed, "comments")
		return
	}
	fragment := "comments"
	if res.Value.ID > 0 {
		fragment = commentAnchor(res.Value.ID)
	}
	redirectWithNotice(w, r, postPath(postID), "", fragment)
}

// UpdateComment はコメントを更新し、編集モードを抜ける。
// POST /board/{postID}/comments/{commentID}
func (h *BoardHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	postID, ok1 := int64Param(r, "postID")
	commentID, ok2 := int64Param(r, "commentID")
	if !ok1 || !ok2 {
		h.pages.renderError(w, r, http.StatusNotFound, model.NewCommentNotFoundError(commentID))
		return
	}
	content := r.FormValue("content")
	if apiErr := board.ValidateComment(content); apiErr != nil {
		redirectWithNotice(w, r, postPath(postID), NoticeCommentEmpty, commentAnchor(commentID))
		return
	}

	res := h.posts.UpdateComment(r.Context(), commentID, sessionUserID(r), content)
	if !res.OK() {
		redirectWithNotice(w, r, postPath(postID), NoticeCommentFailed, commentAnchor(commentID))
		return
	}
	redirectWithNotice(w, r, postPath(postID), "", commentAnchor(commentID))
}

// DeleteComment はコメントを削除する。
// POST /board/{postID}/comments/{commentID}/delete
func (h *BoardHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	postID, ok1 := int64Param(r, "postID")
	commentID, ok2 := int64Param(r, "commentID")
	if !ok1 || !ok2 {
		h.pages.renderError(w, r, http.StatusNotFound, model.NewCommentNotFoundError(commentID))
		return
	}

	res := h.posts.DeleteComment(r.Context(), commentID, sessionUserID(r))
	if !res.OK() {
		redirectWithNotice(w, r, postPath(postID), NoticeCommentFailed, "comments")
		return
	}
	redirectWithNotice(w, r, postPath(postID), "", "comments")
}

func commentAnchor(commentID int64) string {
	return "comment-" + strconv.FormatInt(commentID, 10)
}
