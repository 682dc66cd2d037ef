package board

import (
	"html/template"
	"time"

	"github.com/hitoshi/orbit/internal/model"
)

// Item は一覧・検索結果の1行分の表示データ。
type Item struct {
	ID        int64
	Title     template.HTML
	Snippet   template.HTML
	Author    string
	CreatedAt string
	Edited    string
	ViewCount int64
	LikeCount int64
}

// BuildItems は投稿を表示データに変換する。
// 検索語があればタイトルと抜粋の一致部分を強調する。
func BuildItems(posts []model.Post, authors map[string]string, term string, now time.Time) []Item {
	items := make([]Item, 0, len(posts))
	for _, p := range posts {
		items = append(items, Item{
			ID:        p.ID,
			Title:     Highlight(p.Title, term),
			Snippet:   Highlight(Snippet(p.Content), term),
			Author:    AuthorName(authors, p.UserID),
			CreatedAt: FormatCreatedAt(p.CreatedAt, now),
			Edited:    EditedSuffix(p.CreatedAt, p.UpdatedAt, now),
			ViewCount: p.ViewCount,
			LikeCount: p.LikeCount,
		})
	}
	return items
}

// AuthorIDs は投稿の作成者IDを列挙する。
func AuthorIDs(posts []model.Post) []string {
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.UserID)
	}
	return ids
}

// CommentView はコメント1件の表示データ。
type CommentView struct {
	ID        int64
	Author    string
	Content   string
	CreatedAt string
	Edited    string
	CanModify bool
	Editing   bool
}

// BuildComments はコメントを表示データに変換する。
// 編集モードにできるのはeditingIDのコメント1件だけで、所有者でなければ編集モードにしない。
func BuildComments(comments []model.Comment, authors map[string]string, sessionUserID string, editingID int64, now time.Time) []CommentView {
	views := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		canModify := CanModify(sessionUserID, c.UserID)
		views = append(views, CommentView{
			ID:        c.ID,
			Author:    AuthorName(authors, c.UserID),
			Content:   c.Content,
			CreatedAt: FormatCreatedAt(c.CreatedAt, now),
			Edited:    EditedSuffix(c.CreatedAt, c.UpdatedAt, now),
			CanModify: canModify,
			Editing:   canModify && editingID != 0 && c.ID == editingID,
		})
	}
	return views
}

// CommentAuthorIDs はコメントの作成者IDを列挙する。
func CommentAuthorIDs(comments []model.Comment) []string {
	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.UserID)
	}
	return ids
}
