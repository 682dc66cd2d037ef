package view

import (
	"html/template"
	"net/url"
	"strconv"

	"github.com/hitoshi/orbit/internal/board"
	"github.com/hitoshi/orbit/internal/market"
	"github.com/hitoshi/orbit/internal/model"
)

// Header はヘッダーのプロフィール表示。
type Header struct {
	LoggedIn bool
	UserID   string
	UserName string
}

// Page はレイアウトに渡す共通データ。Dataにページ固有のデータを入れる。
type Page struct {
	Title     string
	Path      string
	CSRFToken string
	Header    Header
	Notice    string
	Error     string
	Data      any
}

// HomeData はホーム画面のデータ。
type HomeData struct {
	Markets []*market.Snapshot
	Posts   []board.Item
}

// MarketData はウィジェット単体のページのデータ。
type MarketData struct {
	Snapshot *market.Snapshot
}

// BoardListData は一覧・検索結果のデータ。
type BoardListData struct {
	Items      []board.Item
	Keyword    string
	Searching  bool
	Pagination Pagination
}

// PostFormData は投稿の作成・編集フォームのデータ。
type PostFormData struct {
	PostID  int64
	Editing bool
	Title   string
	Content string
	Files   []model.FileResponse
}

// Action はフォームの送信先を返す。
func (d PostFormData) Action() string {
	if d.Editing {
		return "/board/" + strconv.FormatInt(d.PostID, 10) + "/edit"
	}
	return "/board"
}

// PostDetailData は投稿詳細のデータ。
type PostDetailData struct {
	ID         int64
	Title      string
	Author     string
	CreatedAt  string
	Edited     string
	ViewCount  int64
	LikeCount  int64
	Content    template.HTML
	Files      []model.FileResponse
	CanModify  bool
	Comments   []board.CommentView
	CanComment bool
	LoginURL   string
}

// LoginData はログインフォームのデータ。
type LoginData struct {
	Email string
	Next  string
}

// RegisterData は会員登録フォームのデータ。パスワードは再表示しない。
type RegisterData struct {
	Email string
	Name  string
}

// UserInfoData はユーザー情報とパスワード変更フォームのデータ。
// 現在のパスワードが誤っていた場合もそのフィールドだけを空にし、新しいパスワードは残す。
type UserInfoData struct {
	User            model.User
	OldPassword     string
	NewPassword     string
	ConfirmPassword string
}

// ErrorData はエラーページのデータ。
type ErrorData struct {
	Status  int
	Message string
	Action  string
}

// PageLink はページ番号のリンク。
type PageLink struct {
	Number  int
	URL     string
	Current bool
}

// Pagination はページ送りの表示データ。番号は1始まりで表示する。
type Pagination struct {
	PrevURL string
	NextURL string
	Links   []PageLink
}

// maxPageLinks は一度に表示するページ番号の数。
const maxPageLinks = 10

// NewPagination はページ送りを組み立てる。currentは0始まり。
// queryのpage以外のパラメータ（size、sort、q）はリンクに引き継ぐ。
func NewPagination(path string, query url.Values, current, totalPages int) Pagination {
	if totalPages <= 1 {
		return Pagination{}
	}
	link := func(n int) string {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("page", strconv.Itoa(n))
		return path + "?" + q.Encode()
	}

	start := current - maxPageLinks/2
	if start < 0 {
		start = 0
	}
	end := start + maxPageLinks
	if end > totalPages {
		end = totalPages
		start = end - maxPageLinks
		if start < 0 {
			start = 0
		}
	}

	var p Pagination
	if current > 0 {
		p.PrevURL = link(current - 1)
	}
	if current < totalPages-1 {
		p.NextURL = link(current + 1)
	}
	for n := start; n < end; n++ {
		p.Links = append(p.Links, PageLink{Number: n + 1, URL: link(n), Current: n == current})
	}
	return p
}
