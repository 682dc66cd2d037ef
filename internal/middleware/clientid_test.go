package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestClientIDMiddleware_IssuesCookie(t *testing.T) {
	var id string
	handler := NewClientIDMiddleware(CookieConfig{Secure: true})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id = ClientIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("client id = %q is not a UUID", id)
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d, want 1", len(cookies))
	}
	c := cookies[0]
	if c.Name != ClientIDCookieName || c.Value != id {
		t.Errorf("cookie = %s=%s", c.Name, c.Value)
	}
	if !c.HttpOnly || !c.Secure {
		t.Errorf("HttpOnly = %v, Secure = %v", c.HttpOnly, c.Secure)
	}
}

func TestClientIDMiddleware_ReusesValidCookie(t *testing.T) {
	existing := uuid.NewString()
	var id string
	handler := NewClientIDMiddleware(CookieConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id = ClientIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: ClientIDCookieName, Value: existing})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if id != existing {
		t.Errorf("client id = %q, want %q", id, existing)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("有効なCookieがある場合は再発行しないべきです")
	}
}

func TestClientIDMiddleware_ReplacesMalformedCookie(t *testing.T) {
	var id string
	handler := NewClientIDMiddleware(CookieConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id = ClientIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: ClientIDCookieName, Value: "not-a-uuid"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if id == "not-a-uuid" {
		t.Error("不正な値はそのまま使わないべきです")
	}
}
