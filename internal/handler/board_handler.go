package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/orbit/internal/board"
	"github.com/hitoshi/orbit/internal/gateway"
	"github.com/hitoshi/orbit/internal/middleware"
	"github.com/hitoshi/orbit/internal/model"
	"github.com/hitoshi/orbit/internal/security"
	"github.com/hitoshi/orbit/internal/view"
)

const (
	msgPostsLoadFailed    = "게시글을 불러오는 중 오류가 발생했습니다."
	msgCommentsLoadFailed = "댓글을 불러오는 중 오류가 발생했습니다."
	msgPostCreateFailed   = "게시글 작성에 실패했습니다."
	msgPostUpdateFailed   = "게시글 수정에 실패했습니다."
	msgUploadReadFailed   = "첨부 파일을 읽을 수 없습니다."

	// maxUploadMemory はmultipartフォームをメモリに保持する上限。超えた分は一時ファイルになる。
	maxUploadMemory = 32 << 20

	// rssPostCount はRSSに載せる最新投稿の件数。
	rssPostCount = 20
)

// BoardService は掲示板ハンドラーが必要とするサービスインターフェース。
type BoardService interface {
	ListPosts(ctx context.Context, q board.ListQuery) gateway.Result[model.Page[model.Post]]
	SearchPosts(ctx context.Context, keyword string, q board.ListQuery) gateway.Result[model.Page[model.Post]]
	GetPost(ctx context.Context, postID int64) gateway.Result[model.Post]
	CreatePost(ctx context.Context, userID string, in model.PostInput) gateway.Result[model.Post]
	UpdatePost(ctx context.Context, postID int64, userID string, in model.PostInput) gateway.Result[model.Post]
	DeletePost(ctx context.Context, postID int64, userID string) gateway.Result[gateway.Empty]
	ListComments(ctx context.Context, postID int64) gateway.Result[[]model.Comment]
	CreateComment(ctx context.Context, userID string, postID int64, content string) gateway.Result[model.Comment]
	UpdateComment(ctx context.Context, commentID int64, userID string, content string) gateway.Result[model.Comment]
	DeleteComment(ctx context.Context, commentID int64, userID string) gateway.Result[gateway.Empty]
}

// AttachmentFetcher は添付ファイルの取得インターフェース。
type AttachmentFetcher interface {
	Fetch(ctx context.Context, filePath string) (*security.Attachment, error)
}

// BoardHandlerConfig は掲示板ハンドラーの設定。
type BoardHandlerConfig struct {
	// BaseURL はRSSのリンクに使う公開URL。
	BaseURL string
	// UploadMaxSize は投稿フォーム1回あたりのボディ上限。エラーメッセージに使う。
	UploadMaxSize int64
}

// BoardHandler は掲示板のHTTPハンドラー。
type BoardHandler struct {
	posts       BoardService
	users       UserLookup
	sanitizer   security.ContentSanitizerService
	attachments AttachmentFetcher
	pages       *pageBuilder
	config      BoardHandlerConfig
	logger      *slog.Logger
	now         func() time.Time
}

// NewBoardHandler はBoardHandlerを生成する。
func NewBoardHandler(
	posts BoardService,
	users UserLookup,
	sanitizer security.ContentSanitizerService,
	attachments AttachmentFetcher,
	pages *pageBuilder,
	config BoardHandlerConfig,
	logger *slog.Logger,
) *BoardHandler {
	return &BoardHandler{
		posts:       posts,
		users:       users,
		sanitizer:   sanitizer,
		attachments: attachments,
		pages:       pages,
		config:      config,
		logger:      logger,
		now:         time.Now,
	}
}

// listQuery はクエリパラメータからページ条件を読む。
func listQuery(r *http.Request) board.ListQuery {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	return board.ListQuery{Page: page, Size: size, Sort: q.Get("sort")}.Normalize()
}

// List は投稿一覧を描画する。
// GET /board?page&size&sort
func (h *BoardHandler) List(w http.ResponseWriter, r *http.Request) {
	q := listQuery(r)
	res := h.posts.ListPosts(r.Context(), q)
	h.renderList(w, r, res, "", q)
}

// Search は検索結果を描画する。一致部分は<mark>で強調する。
// 検索語が空なら一覧に戻る。
// GET /board/search?q&page&size
func (h *BoardHandler) Search(w http.ResponseWriter, r *http.Request) {
	keyword := strings.TrimSpace(r.URL.Query().Get("q"))
	if keyword == "" {
		http.Redirect(w, r, "/board", http.StatusSeeOther)
		return
	}
	q := listQuery(r)
	res := h.posts.SearchPosts(r.Context(), keyword, q)
	h.renderList(w, r, res, keyword, q)
}

func (h *BoardHandler) renderList(w http.ResponseWriter, r *http.Request, res gateway.Result[model.Page[model.Post]], keyword string, q board.ListQuery) {
	data := view.BoardListData{Keyword: keyword, Searching: keyword != ""}
	title := "게시판"
	if data.Searching {
		title = keyword + " 검색 결과"
	}

	if !res.OK() {
		page := h.pages.page(r, title, data)
		page.Error = msgPostsLoadFailed
		h.pages.renderer.Render(w, http.StatusOK, view.PageBoardList, page)
		return
	}

	posts := res.Value.Content
	authors := board.ResolveAuthors(r.Context(), h.users, board.AuthorIDs(posts))
	data.Items = board.BuildItems(posts, authors, keyword, h.now())
	data.Pagination = view.NewPagination(r.URL.Path, paginationQuery(r, q), q.Page, res.Value.TotalPages)

	h.pages.render(w, r, http.StatusOK, view.PageBoardList, title, data)
}

// paginationQuery はページ送りのリンクに引き継ぐパラメータ。
func paginationQuery(r *http.Request, q board.ListQuery) url.Values {
	v := url.Values{}
	if kw := strings.TrimSpace(r.URL.Query().Get("q")); kw != "" {
		v.Set("q", kw)
	}
	if r.URL.Query().Get("size") != "" {
		v.Set("size", strconv.Itoa(q.Size))
	}
	if r.URL.Query().Get("sort") != "" {
		v.Set("sort", q.Sort)
	}
	return v
}

// New は新規投稿フォームを描画する。
// GET /board/new
func (h *BoardHandler) New(w http.ResponseWriter, r *http.Request) {
	h.pages.render(w, r, http.StatusOK, view.PageBoardForm, "새 게시글", view.PostFormData{})
}

// Create は投稿を作成する。タイトルと本文は必須で、添付ファイルは任意。
// POST /board
func (h *BoardHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := sessionUserID(r)
	in, err := readPostInput(r)
	if err != nil {
		h.renderReadError(w, r, view.PostFormData{Title: in.Title, Content: in.Content}, err)
		return
	}
	form := view.PostFormData{Title: in.Title, Content: in.Content}
	if apiErr := board.ValidatePostInput(in); apiErr != nil {
		h.renderForm(w, r, http.StatusBadRequest, form, apiErr.Message)
		return
	}

	res := h.posts.CreatePost(r.Context(), userID, in)
	if !res.OK() {
		if res.Is(gateway.KindUnauthorized) {
			http.Redirect(w, r, middleware.LoginURL(NoticeLoginRequired, "/board/new"), http.StatusSeeOther)
			return
		}
		h.renderForm(w, r, http.StatusBadGateway, form, msgPostCreateFailed)
		return
	}

	if res.Value.ID > 0 {
		redirectWithNotice(w, r, postPath(res.Value.ID), NoticePostCreated, "")
		return
	}
	redirectWithNotice(w, r, "/board", NoticePostCreated, "")
}

// Detail は投稿と添付ファイル、コメントを描画する。
// ?edit=<commentID> の場合はそのコメント1件だけを編集モードにする。
// GET /board/{postID}
func (h *BoardHandler) Detail(w http.ResponseWriter, r *http.Request) {
	postID, ok := int64Param(r, "postID")
	if !ok {
		h.pages.renderError(w, r, http.StatusNotFound, model.NewPostNotFoundError(0))
		return
	}
	ctx := r.Context()

	var (
		postRes    gateway.Result[model.Post]
		commentRes gateway.Result[[]model.Comment]
		g          errgroup.Group
	)
	g.Go(func() error {
		postRes = h.posts.GetPost(ctx, postID)
		return nil
	})
	g.Go(func() error {
		commentRes = h.posts.ListComments(ctx, postID)
		return nil
	})
	_ = g.Wait()

	if !postRes.OK() {
		h.pages.renderFailure(w, r, postRes.Failure, model.NewPostNotFoundError(postID))
		return
	}
	post := postRes.Value

	comments := commentRes.Value
	ids := append(board.CommentAuthorIDs(comments), post.UserID)
	authors := board.ResolveAuthors(ctx, h.users, ids)

	userID := sessionUserID(r)
	editingID, _ := strconv.ParseInt(r.URL.Query().Get("edit"), 10, 64)
	now := h.now()

	data := view.PostDetailData{
		ID:         post.ID,
		Title:      post.Title,
		Author:     board.AuthorName(authors, post.UserID),
		CreatedAt:  board.FormatCreatedAt(post.CreatedAt, now),
		Edited:     board.EditedSuffix(post.CreatedAt, post.UpdatedAt, now),
		ViewCount:  post.ViewCount,
		LikeCount:  post.LikeCount,
		Content:    h.sanitizer.Render(post.Content),
		Files:      post.Files,
		CanModify:  board.CanModify(userID, post.UserID),
		Comments:   board.BuildComments(comments, authors, userID, editingID, now),
		CanComment: userID != "",
		LoginURL:   middleware.LoginURL(NoticeLoginRequired, r.URL.RequestURI()),
	}
	if data.ID == 0 {
		data.ID = postID
	}

	page := h.pages.page(r, post.Title, data)
	if !commentRes.OK() {
		page.Error = msgCommentsLoadFailed
	}
	h.pages.renderer.Render(w, http.StatusOK, view.PageBoardDetail, page)
}

// Edit は投稿の編集フォームを描画する。所有者以外は403。
// GET /board/{postID}/edit
func (h *BoardHandler) Edit(w http.ResponseWriter, r *http.Request) {
	post, ok := h.ownedPost(w, r)
	if !ok {
		return
	}
	h.pages.render(w, r, http.StatusOK, view.PageBoardForm, "게시글 수정", view.PostFormData{
		PostID:  post.ID,
		Editing: true,
		Title:   post.Title,
		Content: post.Content,
		Files:   post.Files,
	})
}

// Update は投稿を更新する。
// POST /board/{postID}/edit
func (h *BoardHandler) Update(w http.ResponseWriter, r *http.Request) {
	post, ok := h.ownedPost(w, r)
	if !ok {
		return
	}
	in, err := readPostInput(r)
	form := view.PostFormData{PostID: post.ID, Editing: true, Title: in.Title, Content: in.Content, Files: post.Files}
	if err != nil {
		h.renderReadError(w, r, form, err)
		return
	}
	if apiErr := board.ValidatePostInput(in); apiErr != nil {
		h.renderForm(w, r, http.StatusBadRequest, form, apiErr.Message)
		return
	}

	res := h.posts.UpdatePost(r.Context(), post.ID, sessionUserID(r), in)
	if !res.OK() {
		h.renderForm(w, r, http.StatusBadGateway, form, msgPostUpdateFailed)
		return
	}
	redirectWithNotice(w, r, postPath(post.ID), NoticePostUpdated, "")
}

// Delete は投稿を削除し、一覧に戻る。
// POST /board/{postID}/delete
func (h *BoardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	postID, ok := int64Param(r, "postID")
	if !ok {
		h.pages.renderError(w, r, http.StatusNotFound, model.NewPostNotFoundError(0))
		return
	}

	res := h.posts.DeletePost(r.Context(), postID, sessionUserID(r))
	switch {
	case res.OK():
		redirectWithNotice(w, r, "/board", NoticePostDeleted, "")
	case res.Is(gateway.KindUnauthorized):
		h.pages.renderError(w, r, http.StatusForbidden, model.NewForbiddenError())
	default:
		redirectWithNotice(w, r, postPath(postID), NoticeDeleteFailed, "")
	}
}

// Attachment は添付ファイルをブラウザへ中継する。
// GET /board/{postID}/files/{fileID}
func (h *BoardHandler) Attachment(w http.ResponseWriter, r *http.Request) {
	postID, ok1 := int64Param(r, "postID")
	fileID, ok2 := int64Param(r, "fileID")
	if !ok1 || !ok2 {
		h.pages.renderError(w, r, http.StatusNotFound, model.NewAttachmentNotFoundError(fileID))
		return
	}

	res := h.posts.GetPost(r.Context(), postID)
	if !res.OK() {
		h.pages.renderFailure(w, r, res.Failure, model.NewPostNotFoundError(postID))
		return
	}

	var file *model.FileResponse
	for i := range res.Value.Files {
		if res.Value.Files[i].ID == fileID {
			file = &res.Value.Files[i]
			break
		}
	}
	if file == nil {
		h.pages.renderError(w, r, http.StatusNotFound, model.NewAttachmentNotFoundError(fileID))
		return
	}

	att, err := h.attachments.Fetch(r.Context(), file.FilePath)
	if err != nil {
		switch {
		case errors.Is(err, security.ErrAttachmentBlocked):
			h.pages.renderError(w, r, http.StatusForbidden, model.NewSSRFBlockedError())
		case errors.Is(err, security.ErrAttachmentNotFound):
			h.pages.renderError(w, r, http.StatusNotFound, model.NewAttachmentNotFoundError(fileID))
		default:
			h.logger.Warn("attachment fetch failed",
				slog.Int64("post_id", postID),
				slog.Int64("file_id", fileID),
				slog.String("error", err.Error()),
			)
			h.pages.renderError(w, r, http.StatusBadGateway, model.NewGatewayUnavailableError())
		}
		return
	}

	contentType := att.ContentType
	if contentType == "" {
		contentType = file.FileType
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(att.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.FileName}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Write(att.Data)
}

// RSS は最新投稿のRSS 2.0フィードを返す。
// GET /board/rss.xml
func (h *BoardHandler) RSS(w http.ResponseWriter, r *http.Request) {
	res := h.posts.ListPosts(r.Context(), board.ListQuery{Size: rssPostCount})
	if !res.OK() {
		http.Error(w, msgPostsLoadFailed, http.StatusBadGateway)
		return
	}
	posts := res.Value.Content
	authors := board.ResolveAuthors(r.Context(), h.users, board.AuthorIDs(posts))

	buf := new(bytes.Buffer)
	if err := board.WriteRSS(buf, posts, authors, h.config.BaseURL, h.now()); err != nil {
		h.logger.Error("failed to write rss", slog.String("error", err.Error()))
		http.Error(w, "일시적인 오류가 발생했습니다.", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	buf.WriteTo(w)
}

// ownedPost はURLの投稿を取得し、ログイン中のユーザーが所有者であることを確認する。
// 確認できなければレスポンスを書いてfalseを返す。
func (h *BoardHandler) ownedPost(w http.ResponseWriter, r *http.Request) (model.Post, bool) {
	postID, ok := int64Param(r, "postID")
	if !ok {
		h.pages.renderError(w, r, http.StatusNotFound, model.NewPostNotFoundError(0))
		return model.Post{}, false
	}
	res := h.posts.GetPost(r.Context(), postID)
	if !res.OK() {
		h.pages.renderFailure(w, r, res.Failure, model.NewPostNotFoundError(postID))
		return model.Post{}, false
	}
	if !board.CanModify(sessionUserID(r), res.Value.UserID) {
		h.pages.renderError(w, r, http.StatusForbidden, model.NewForbiddenError())
		return model.Post{}, false
	}
	post := res.Value
	if post.ID == 0 {
		post.ID = postID
	}
	return post, true
}

func (h *BoardHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, form view.PostFormData, message string) {
	title := "새 게시글"
	if form.Editing {
		title = "게시글 수정"
	}
	page := h.pages.page(r, title, form)
	page.Error = message
	h.pages.renderer.Render(w, status, view.PageBoardForm, page)
}

// renderReadError はフォームを読めなかった場合のエラーを描画する。
// 上限超過は413、それ以外は400。
func (h *BoardHandler) renderReadError(w http.ResponseWriter, r *http.Request, form view.PostFormData, err error) {
	if middleware.IsBodyTooLarge(err) {
		h.renderForm(w, r, http.StatusRequestEntityTooLarge, form, model.NewPayloadTooLargeError(h.config.UploadMaxSize).Message)
		return
	}
	h.renderForm(w, r, http.StatusBadRequest, form, msgUploadReadFailed)
}

// readPostInput はmultipartまたはURLエンコードのフォームから投稿の入力値を読む。
func readPostInput(r *http.Request) (model.PostInput, error) {
	var in model.PostInput
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			return in, err
		}
	} else if err := r.ParseForm(); err != nil {
		return in, err
	}
	in.Title = r.FormValue("title")
	in.Content = r.FormValue("content")

	if r.MultipartForm == nil {
		return in, nil
	}
	for _, fh := range r.MultipartForm.File["files"] {
		if fh.Filename == "" || fh.Size == 0 {
			continue
		}
		up, err := readUpload(fh)
		if err != nil {
			return in, err
		}
		in.Files = append(in.Files, up)
	}
	return in, nil
}

func readUpload(fh *multipart.FileHeader) (model.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return model.Upload{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return model.Upload{}, err
	}
	return model.Upload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func postPath(postID int64) string {
	return "/board/" + strconv.FormatInt(postID, 10)
}
