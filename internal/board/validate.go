package board

import (
	"strings"

	"github.com/hitoshi/orbit/internal/model"
)

// ValidatePostInput は投稿フォームを検証する。
// タイトルと本文は前後の空白を除いて空であってはならない。添付ファイルは任意。
func ValidatePostInput(in model.PostInput) *model.APIError {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Content) == "" {
		return model.NewValidationError("제목과 내용을 입력해주세요.")
	}
	return nil
}

// ValidateComment はコメント本文を検証する。
func ValidateComment(content string) *model.APIError {
	if strings.TrimSpace(content) == "" {
		return model.NewValidationError("댓글 내용을 입력해주세요.")
	}
	return nil
}

// CanModify はログイン中のユーザーがリソースの所有者かを返す。
// 実際の権限判定はバックエンドが行い、ここでは編集・削除の操作を出すかだけを決める。
func CanModify(sessionUserID, ownerUserID string) bool {
	return sessionUserID != "" && sessionUserID == ownerUserID
}
