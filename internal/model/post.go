package model

// Post は投稿サービスが返す投稿を表す。
// 日時はバックエンドの表現のまま保持し、表示時に解釈する。
type Post struct {
	ID        int64          `json:"id"`
	UserID    string         `json:"userId"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	ViewCount int64          `json:"viewCount"`
	LikeCount int64          `json:"likeCount"`
	CreatedAt string         `json:"createdAt"`
	UpdatedAt string         `json:"updatedAt"`
	Files     []FileResponse `json:"files"`
}

// Comment は投稿に付くコメントを表す。
type Comment struct {
	ID        int64  `json:"id"`
	PostID    int64  `json:"postId"`
	UserID    string `json:"userId"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// FileResponse は添付ファイルのメタデータ。
type FileResponse struct {
	ID        int64  `json:"id"`
	FileName  string `json:"fileName"`
	FilePath  string `json:"filePath"`
	FileSize  int64  `json:"fileSize"`
	FileType  string `json:"fileType"`
	CreatedAt string `json:"createdAt"`
}

// Page はSpringのページングレスポンスのうち画面で使う部分を表す。
type Page[T any] struct {
	Content          []T   `json:"content"`
	TotalElements    int64 `json:"totalElements"`
	TotalPages       int   `json:"totalPages"`
	Size             int   `json:"size"`
	Number           int   `json:"number"`
	NumberOfElements int   `json:"numberOfElements"`
	First            bool  `json:"first"`
	Last             bool  `json:"last"`
	Empty            bool  `json:"empty"`
}

// Upload はmultipartで送信する添付ファイル1件を表す。
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// PostInput は投稿の作成・更新フォームの入力値。
type PostInput struct {
	Title   string
	Content string
	Files   []Upload
}

// CommentCreateRequest はコメント作成APIのリクエストボディ。
// 返信機能は未使用のためParentCommentIDは常にnullを送る。
type CommentCreateRequest struct {
	PostID          int64  `json:"postId"`
	Content         string `json:"content"`
	ParentCommentID *int64 `json:"parentCommentId"`
}

// CommentUpdateRequest はコメント更新APIのリクエストボディ。
type CommentUpdateRequest struct {
	Content string `json:"content"`
}
