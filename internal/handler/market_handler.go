package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/orbit/internal/market"
	"github.com/hitoshi/orbit/internal/middleware"
	"github.com/hitoshi/orbit/internal/model"
	"github.com/hitoshi/orbit/internal/view"
)

// fragmentHeader が付いたリクエストにはウィジェットのHTML断片だけを返す。
const fragmentHeader = "X-Fragment"

// MarketViewers はブラウザごとのマーケットビューアを提供する。
type MarketViewers interface {
	Catalog() *market.Catalog
	Viewer(clientID string, kind market.Kind) (*market.Viewer, error)
}

// MarketHandler はマーケットウィジェットのHTTPハンドラー。
type MarketHandler struct {
	viewers MarketViewers
	pages   *pageBuilder
	logger  *slog.Logger
}

// NewMarketHandler はMarketHandlerを生成する。
func NewMarketHandler(viewers MarketViewers, pages *pageBuilder, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		viewers: viewers,
		pages:   pages,
		logger:  logger,
	}
}

// selectFromRequest はURLの種別とクエリの銘柄・期間で選択する。
func (h *MarketHandler) selectFromRequest(r *http.Request) (*market.Snapshot, error) {
	kind := market.Kind(chi.URLParam(r, "kind"))
	v, err := h.viewers.Viewer(middleware.ReturningClientIDFromContext(r.Context()), kind)
	if err != nil {
		return nil, err
	}
	q := r.URL.Query()
	return v.Select(r.Context(), q.Get("code"), q.Get("period"))
}

// Snapshot はウィジェットの表示データをJSONで返す。
// 同じブラウザの後続の選択に置き換えられた場合は204を返し、スクリプトは結果を捨てる。
// GET /api/market/{kind}?code&period
func (h *MarketHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.selectFromRequest(r)
	if err != nil {
		h.writeSelectError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(snap)
}

func (h *MarketHandler) writeSelectError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	switch {
	case errors.Is(err, market.ErrSuperseded):
		w.WriteHeader(http.StatusNoContent)
	case errors.As(err, &apiErr):
		middleware.WriteErrorResponse(w, middleware.StatusForAPIError(apiErr), apiErr)
	case errors.Is(err, context.Canceled):
		// ブラウザが接続を切った
		w.WriteHeader(http.StatusNoContent)
	default:
		h.logger.Error("market selection failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
	}
}

// Widget はウィジェットを描画する。スクリプトからの取得にはHTML断片を、
// それ以外（スクリプト無効時のリンク）にはレイアウト付きのページを返す。
// GET /market/{kind}?code&period
func (h *MarketHandler) Widget(w http.ResponseWriter, r *http.Request) {
	snap, err := h.selectFromRequest(r)
	if err != nil {
		var apiErr *model.APIError
		switch {
		case errors.Is(err, market.ErrSuperseded), errors.Is(err, context.Canceled):
			w.WriteHeader(http.StatusNoContent)
		case errors.As(err, &apiErr):
			h.pages.renderError(w, r, middleware.StatusForAPIError(apiErr), apiErr)
		default:
			h.logger.Error("market selection failed",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
			h.pages.renderError(w, r, http.StatusBadGateway, model.NewGatewayUnavailableError())
		}
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	if r.Header.Get(fragmentHeader) != "" {
		h.pages.renderer.RenderWidget(w, snap)
		return
	}
	h.pages.render(w, r, http.StatusOK, view.PageMarket, snap.Title, view.MarketData{Snapshot: snap})
}
