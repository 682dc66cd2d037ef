// Package view はサーバー側で描画するHTMLページを提供する。
//
// テンプレートは起動時に1回だけ解析する。レイアウトと部品（partials）を共通に持ち、
// ページごとにクローンした上でページ固有の"content"を定義する。
package view

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/orbit/internal/market"
)

//go:embed templates
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// ページ名。templates/pages/<name>.html に対応する。
const (
	PageHome        = "home"
	PageBoardList   = "board_list"
	PageBoardForm   = "board_form"
	PageBoardDetail = "board_detail"
	PageLogin       = "login"
	PageRegister    = "register"
	PageUserInfo    = "user_info"
	PageMarket      = "market"
	PageError       = "error"
)

var pageNames = []string{
	PageHome, PageBoardList, PageBoardForm, PageBoardDetail,
	PageLogin, PageRegister, PageUserInfo, PageMarket, PageError,
}

var functions = template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	},
	"marketURL": MarketURL,
	"fileSize":  FileSize,
	"add": func(a, b int) int {
		return a + b
	},
}

// Renderer はページを描画する。
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

// NewRenderer は埋め込みテンプレートをすべて解析する。
func NewRenderer(logger *slog.Logger) (*Renderer, error) {
	base, err := template.New("").Funcs(functions).ParseFS(templateFS, "templates/layout.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout templates: %w", err)
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone layout for %s: %w", name, err)
		}
		if _, err := t.ParseFS(templateFS, "templates/pages/"+name+".html"); err != nil {
			return nil, fmt.Errorf("failed to parse page %s: %w", name, err)
		}
		pages[name] = t
	}

	return &Renderer{pages: pages, logger: logger}, nil
}

// Render はレイアウト付きでページを描画する。
// 一度バッファに描画し、失敗した場合は途中までのHTMLを送らずに500を返す。
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, page *Page) {
	r.execute(w, status, name, "base", page)
}

// RenderWidget はマーケットウィジェット単体のHTML断片を描画する。
func (r *Renderer) RenderWidget(w http.ResponseWriter, snap *market.Snapshot) {
	r.execute(w, http.StatusOK, PageMarket, "market-widget", snap)
}

func (r *Renderer) execute(w http.ResponseWriter, status int, name, entry string, data any) {
	t, ok := r.pages[name]
	if !ok {
		r.logger.Error("unknown page template", slog.String("page", name))
		http.Error(w, "일시적인 오류가 발생했습니다.", http.StatusInternalServerError)
		return
	}

	buf := new(bytes.Buffer)
	if err := t.ExecuteTemplate(buf, entry, data); err != nil {
		r.logger.Error("failed to render template",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "일시적인 오류가 발생했습니다.", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// StaticHandler は/static/配下の埋め込みファイルを配信する。
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// MarketURL はウィジェットの選択リンクを返す。スクリプトが無効でもこのURLで選択できる。
func MarketURL(kind market.Kind, code, period string) string {
	q := url.Values{}
	if code != "" {
		q.Set("code", code)
	}
	if period != "" {
		q.Set("period", period)
	}
	u := "/market/" + url.PathEscape(string(kind))
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// FileSize は添付ファイルのサイズを読みやすい単位で返す。
func FileSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
