package user

import (
	"unicode/utf8"

	"github.com/hitoshi/orbit/internal/gateway"
	"github.com/hitoshi/orbit/internal/model"
)

const (
	minEmailLength    = 2
	minNameLength     = 2
	minPasswordLength = 8

	// oldPasswordIncorrect はパスワード変更APIが現在のパスワード誤りの際に返す文字列。
	oldPasswordIncorrect = "Old password is incorrect"
)

// RegisterForm は会員登録フォームの入力値。
type RegisterForm struct {
	Email string
	Name  string
	Pwd   string
}

// ValidateRegistration は会員登録の入力を検証する。
// メール、名前、パスワードの順に確認し、最初に見つかった違反を返す。
func ValidateRegistration(f RegisterForm) *model.APIError {
	switch {
	case utf8.RuneCountInString(f.Email) < minEmailLength:
		return model.NewValidationError("이메일은 최소 2글자 이상이어야 합니다.")
	case utf8.RuneCountInString(f.Name) < minNameLength:
		return model.NewValidationError("이름은 최소 2글자 이상이어야 합니다.")
	case utf8.RuneCountInString(f.Pwd) < minPasswordLength:
		return model.NewValidationError("비밀번호는 최소 8글자 이상이어야 합니다.")
	}
	return nil
}

// PasswordChangeForm はパスワード変更フォームの入力値。
type PasswordChangeForm struct {
	OldPassword     string
	NewPassword     string
	ConfirmPassword string
}

// ValidatePasswordChange はパスワード変更の入力を検証する。
// 新しいパスワードの長さ、確認欄との一致の順に確認する。
func ValidatePasswordChange(f PasswordChangeForm) *model.APIError {
	if utf8.RuneCountInString(f.NewPassword) < minPasswordLength {
		return model.NewValidationError("새로운 비밀번호는 최소 8자 이상이어야 합니다.")
	}
	if f.NewPassword != f.ConfirmPassword {
		return model.NewValidationError("새로운 비밀번호와 비밀번호 확인이 일치하지 않습니다.")
	}
	return nil
}

// IsOldPasswordIncorrect はパスワード変更の失敗が現在のパスワード誤りによるものかを返す。
func IsOldPasswordIncorrect(f *gateway.Failure) bool {
	return f.BodyContains(oldPasswordIncorrect)
}
