package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/orbit/internal/board"
	"github.com/hitoshi/orbit/internal/market"
	"github.com/hitoshi/orbit/internal/middleware"
	"github.com/hitoshi/orbit/internal/view"
)

// latestPostCount はホーム画面に表示する最新投稿の件数。
const latestPostCount = 5

// HomeHandler はホーム画面のHTTPハンドラー。
type HomeHandler struct {
	viewers MarketViewers
	posts   BoardService
	users   UserLookup
	pages   *pageBuilder
	logger  *slog.Logger
	now     func() time.Time
}

// NewHomeHandler はHomeHandlerを生成する。
func NewHomeHandler(viewers MarketViewers, posts BoardService, users UserLookup, pages *pageBuilder, logger *slog.Logger) *HomeHandler {
	return &HomeHandler{
		viewers: viewers,
		posts:   posts,
		users:   users,
		pages:   pages,
		logger:  logger,
		now:     time.Now,
	}
}

// Home は3つのマーケットウィジェットと最新投稿を描画する。
// ウィジェットはブラウザごとの直前の選択を引き継ぎ、それぞれ独立に並行して取得する。
// GET /
func (h *HomeHandler) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID := middleware.ReturningClientIDFromContext(ctx)
	kinds := h.viewers.Catalog().Kinds()

	snaps := make([]*market.Snapshot, len(kinds))
	var items []board.Item
	var postsFailed bool

	var g errgroup.Group
	for i, kind := range kinds {
		g.Go(func() error {
			snaps[i] = h.widget(ctx, clientID, kind)
			return nil
		})
	}
	g.Go(func() error {
		items, postsFailed = h.latestPosts(ctx)
		return nil
	})
	_ = g.Wait()

	var out []*market.Snapshot
	for _, s := range snaps {
		if s != nil {
			out = append(out, s)
		}
	}

	page := h.pages.page(r, "", view.HomeData{Markets: out, Posts: items})
	if postsFailed {
		page.Error = msgPostsLoadFailed
	}
	h.pages.renderer.Render(w, http.StatusOK, view.PageHome, page)
}

func (h *HomeHandler) widget(ctx context.Context, clientID string, kind market.Kind) *market.Snapshot {
	v, err := h.viewers.Viewer(clientID, kind)
	if err != nil {
		h.logger.Error("market viewer unavailable", slog.String("kind", string(kind)), slog.String("error", err.Error()))
		return nil
	}
	cur := v.Current()
	snap, err := v.Select(ctx, cur.Code, cur.Period)
	if err != nil {
		if !errors.Is(err, market.ErrSuperseded) {
			h.logger.Warn("market widget selection failed", slog.String("kind", string(kind)), slog.String("error", err.Error()))
		}
		return v.Placeholder()
	}
	return snap
}

func (h *HomeHandler) latestPosts(ctx context.Context) ([]board.Item, bool) {
	res := h.posts.ListPosts(ctx, board.ListQuery{Size: latestPostCount})
	if !res.OK() {
		return nil, true
	}
	posts := res.Value.Content
	authors := board.ResolveAuthors(ctx, h.users, board.AuthorIDs(posts))
	return board.BuildItems(posts, authors, "", h.now()), false
}
