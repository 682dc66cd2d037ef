// Package board は掲示板（投稿・コメント）のAPIラッパーと表示用の変換を提供する。
package board

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hitoshi/orbit/internal/gateway"
	"github.com/hitoshi/orbit/internal/model"
)

const (
	postsPath    = "/api/posts"
	commentsPath = "/api/comments"

	// DefaultPageSize は一覧の1ページあたりの件数。
	DefaultPageSize = 10
	// DefaultSort は一覧の並び順。
	DefaultSort = "createdAt,desc"
	// MaxPageSize は一覧で受け付ける最大件数。
	MaxPageSize = 50
)

// Service は投稿サービスのAPIラッパー。
type Service struct {
	client *gateway.Client
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(client *gateway.Client) *Service {
	return &Service{client: client}
}

// ListQuery は一覧取得の条件。
type ListQuery struct {
	Page int
	Size int
	Sort string
}

// Normalize は未指定・範囲外の値を既定値に置き換える。
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 0 {
		q.Page = 0
	}
	if q.Size <= 0 || q.Size > MaxPageSize {
		q.Size = DefaultPageSize
	}
	if strings.TrimSpace(q.Sort) == "" {
		q.Sort = DefaultSort
	}
	return q
}

// ListPosts は投稿一覧をページ単位で取得する。
func (s *Service) ListPosts(ctx context.Context, q ListQuery) gateway.Result[model.Page[model.Post]] {
	q = q.Normalize()
	return gateway.Do[model.Page[model.Post]](ctx, s.client, gateway.Request{
		Method: http.MethodGet,
		Path:   postsPath,
		Query: url.Values{
			"page": {strconv.Itoa(q.Page)},
			"size": {strconv.Itoa(q.Size)},
			"sort": {q.Sort},
		},
	})
}

// SearchPosts はキーワードで投稿を検索する。
func (s *Service) SearchPosts(ctx context.Context, keyword string, q ListQuery) gateway.Result[model.Page[model.Post]] {
	q = q.Normalize()
	return gateway.Do[model.Page[model.Post]](ctx, s.client, gateway.Request{
		Method: http.MethodGet,
		Path:   postsPath + "/search",
		Query: url.Values{
			"keyword": {keyword},
			"page":    {strconv.Itoa(q.Page)},
			"size":    {strconv.Itoa(q.Size)},
		},
	})
}

// GetPost は投稿1件を取得する。
func (s *Service) GetPost(ctx context.Context, postID int64) gateway.Result[model.Post] {
	return gateway.Do[model.Post](ctx, s.client, gateway.Request{
		Method: http.MethodGet,
		Path:   postsPath + "/" + strconv.FormatInt(postID, 10),
	})
}

// CreatePost は投稿を作成する。本文と添付ファイルはmultipartで送る。
func (s *Service) CreatePost(ctx context.Context, userID string, in model.PostInput) gateway.Result[model.Post] {
	return gateway.Do[model.Post](ctx, s.client, gateway.Request{
		Method:    http.MethodPost,
		Path:      postsPath,
		Query:     url.Values{"userId": {userID}},
		Multipart: postMultipart(in),
	})
}

// UpdatePost は投稿を更新する。
func (s *Service) UpdatePost(ctx context.Context, postID int64, userID string, in model.PostInput) gateway.Result[model.Post] {
	return gateway.Do[model.Post](ctx, s.client, gateway.Request{
		Method:    http.MethodPut,
		Path:      postsPath + "/" + strconv.FormatInt(postID, 10),
		Query:     url.Values{"userId": {userID}},
		Multipart: postMultipart(in),
	})
}

// DeletePost は投稿を削除する。
func (s *Service) DeletePost(ctx context.Context, postID int64, userID string) gateway.Result[gateway.Empty] {
	return gateway.Do[gateway.Empty](ctx, s.client, gateway.Request{
		Method: http.MethodDelete,
		Path:   postsPath + "/" + strconv.FormatInt(postID, 10),
		Query:  url.Values{"userId": {userID}},
	})
}

// ListComments は投稿のコメント一覧を取得する。
func (s *Service) ListComments(ctx context.Context, postID int64) gateway.Result[[]model.Comment] {
	return gateway.Do[[]model.Comment](ctx, s.client, gateway.Request{
		Method: http.MethodGet,
		Path:   commentsPath + "/post/" + strconv.FormatInt(postID, 10),
	})
}

// CreateComment はコメントを作成する。返信は使わないため親コメントは常にnull。
func (s *Service) CreateComment(ctx context.Context, userID string, postID int64, content string) gateway.Result[model.Comment] {
	return gateway.Do[model.Comment](ctx, s.client, gateway.Request{
		Method: http.MethodPost,
		Path:   commentsPath,
		Query:  url.Values{"userId": {userID}},
		JSON:   model.CommentCreateRequest{PostID: postID, Content: content},
	})
}

// UpdateComment はコメントを更新する。
func (s *Service) UpdateComment(ctx context.Context, commentID int64, userID string, content string) gateway.Result[model.Comment] {
	return gateway.Do[model.Comment](ctx, s.client, gateway.Request{
		Method: http.MethodPut,
		Path:   commentsPath + "/" + strconv.FormatInt(commentID, 10),
		Query:  url.Values{"userId": {userID}},
		JSON:   model.CommentUpdateRequest{Content: content},
	})
}

// DeleteComment はコメントを削除する。
func (s *Service) DeleteComment(ctx context.Context, commentID int64, userID string) gateway.Result[gateway.Empty] {
	return gateway.Do[gateway.Empty](ctx, s.client, gateway.Request{
		Method: http.MethodDelete,
		Path:   commentsPath + "/" + strconv.FormatInt(commentID, 10),
		Query:  url.Values{"userId": {userID}},
	})
}

func postMultipart(in model.PostInput) *gateway.Multipart {
	m := &gateway.Multipart{
		Fields: []gateway.Field{
			{Name: "title", Value: in.Title},
			{Name: "content", Value: in.Content},
		},
	}
	for _, f := range in.Files {
		m.Files = append(m.Files, gateway.FilePart{
			Field:       "files",
			FileName:    f.FileName,
			ContentType: f.ContentType,
			Data:        f.Data,
		})
	}
	return m
}
