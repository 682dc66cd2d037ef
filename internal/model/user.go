// Package model はドメインモデルを定義する。
package model

// User はuser-serviceが返すユーザー情報を表す。
type User struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// Me はセッション確認APIのレスポンスを表す。
type Me struct {
	UserID string `json:"userId"`
}

// LoginRequest はログインAPIのリクエストボディ。
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest は会員登録APIのリクエストボディ。
// パスワードのフィールド名はバックエンドのDTOに合わせてpwdとする。
type RegisterRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Pwd   string `json:"pwd"`
}

// ChangePasswordRequest はパスワード変更APIのリクエストボディ。
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}
