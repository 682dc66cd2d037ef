package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func newCSRFHandler(called *bool, token *string) http.Handler {
	return NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		if token != nil {
			*token = CSRFTokenFromContext(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCSRFMiddleware_GETRequest_SetsCookieAndContextToken(t *testing.T) {
	var called bool
	var token string
	handler := newCSRFHandler(&called, &token)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/board/new", nil))

	if !called {
		t.Fatal("GETは検証なしで通るべきです")
	}
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == CSRFCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("CSRF Cookieが設定されていません")
	}
	if len(cookie.Value) != 64 {
		t.Errorf("token length = %d, want 64", len(cookie.Value))
	}
	if cookie.HttpOnly {
		t.Error("CSRF CookieはHttpOnlyであってはいけません")
	}
	if token != cookie.Value {
		t.Errorf("context token = %q, cookie = %q", token, cookie.Value)
	}
}

func TestCSRFMiddleware_GETRequest_ExistingCookie_DoesNotReplace(t *testing.T) {
	var called bool
	var token string
	handler := newCSRFHandler(&called, &token)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "existing"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if len(w.Result().Cookies()) != 0 {
		t.Error("既存のCookieがある場合は再設定しないべきです")
	}
	if token != "existing" {
		t.Errorf("context token = %q, want existing", token)
	}
}

func TestCSRFMiddleware_POST_FormField_PassesThrough(t *testing.T) {
	var called bool
	handler := newCSRFHandler(&called, nil)

	form := url.Values{CSRFFieldName: {"tok"}, "title": {"hello"}}
	req := httptest.NewRequest(http.MethodPost, "/board", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "tok"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if !called || w.Code != http.StatusOK {
		t.Errorf("status = %d, called = %v", w.Code, called)
	}
}

func TestCSRFMiddleware_POST_Header_PassesThrough(t *testing.T) {
	var called bool
	handler := newCSRFHandler(&called, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/x", nil)
	req.Header.Set("X-CSRF-Token", "tok")
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "tok"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Error("ヘッダーのトークンが一致すれば通るべきです")
	}
}

func TestCSRFMiddleware_UnsafeMethods_Rejected(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		cookie    string
		submitted string
	}{
		{"no cookie", http.MethodPost, "", "tok"},
		{"no submitted token", http.MethodPost, "tok", ""},
		{"mismatch", http.MethodPost, "tok", "other"},
		{"put without token", http.MethodPut, "tok", ""},
		{"delete without token", http.MethodDelete, "tok", ""},
		{"patch mismatch", http.MethodPatch, "tok", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var called bool
			handler := newCSRFHandler(&called, nil)

			req := httptest.NewRequest(tt.method, "/board/1", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: tt.cookie})
			}
			if tt.submitted != "" {
				req.Header.Set("X-CSRF-Token", tt.submitted)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if called {
				t.Error("検証失敗なのにハンドラーが呼ばれました")
			}
			if w.Code != http.StatusForbidden {
				t.Errorf("status = %d, want 403", w.Code)
			}
		})
	}
}
