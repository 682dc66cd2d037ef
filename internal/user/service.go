// Package user はuser-serviceの認証・ユーザーAPIを呼び出すサービス層を提供する。
package user

import (
	"context"
	"net/http"
	"net/url"

	"github.com/hitoshi/orbit/internal/gateway"
	"github.com/hitoshi/orbit/internal/model"
)

const basePath = "/user-service"

// Service はuser-serviceのAPIラッパー。
// 認証状態はバックエンドが発行するCookieで表現されるため、ここでは保持しない。
type Service struct {
	client *gateway.Client
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(client *gateway.Client) *Service {
	return &Service{client: client}
}

// CheckSession は現在のCookieでログインしているユーザーIDを問い合わせる。
func (s *Service) CheckSession(ctx context.Context) gateway.Result[model.Me] {
	return gateway.Do[model.Me](ctx, s.client, gateway.Request{
		Method: http.MethodGet,
		Path:   basePath + "/users/me",
	})
}

// Login はログインする。成功時にバックエンドが認証Cookieを発行する。
func (s *Service) Login(ctx context.Context, email, password string) gateway.Result[string] {
	return gateway.Do[string](ctx, s.client, gateway.Request{
		Method: http.MethodPost,
		Path:   basePath + "/login",
		JSON:   model.LoginRequest{Email: email, Password: password},
	})
}

// Logout はバックエンドのセッションを破棄する。
func (s *Service) Logout(ctx context.Context) gateway.Result[gateway.Empty] {
	return gateway.Do[gateway.Empty](ctx, s.client, gateway.Request{
		Method: http.MethodPost,
		Path:   basePath + "/logout",
	})
}

// Register は会員登録する。入力検証はValidateRegistrationで事前に行う。
func (s *Service) Register(ctx context.Context, form RegisterForm) gateway.Result[model.User] {
	return gateway.Do[model.User](ctx, s.client, gateway.Request{
		Method: http.MethodPost,
		Path:   basePath + "/users",
		JSON:   model.RegisterRequest{Email: form.Email, Name: form.Name, Pwd: form.Pwd},
	})
}

// GetUser はユーザー情報を取得する。
func (s *Service) GetUser(ctx context.Context, userID string) gateway.Result[model.User] {
	return gateway.Do[model.User](ctx, s.client, gateway.Request{
		Method: http.MethodGet,
		Path:   basePath + "/users/" + url.PathEscape(userID),
	})
}

// ChangePassword はパスワードを変更する。入力検証はValidatePasswordChangeで事前に行う。
func (s *Service) ChangePassword(ctx context.Context, userID string, form PasswordChangeForm) gateway.Result[string] {
	return gateway.Do[string](ctx, s.client, gateway.Request{
		Method: http.MethodPatch,
		Path:   basePath + "/users/" + url.PathEscape(userID) + "/password",
		JSON:   model.ChangePasswordRequest{OldPassword: form.OldPassword, NewPassword: form.NewPassword},
	})
}
