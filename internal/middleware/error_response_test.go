package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/orbit/internal/model"
)

func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorResponse(w, http.StatusNotFound, model.NewUnknownMarketError("crypto"))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != model.ErrCodeUnknownMarket {
		t.Errorf("code = %q", body.Code)
	}
	if body.Message == "" || body.Category == "" || body.Action == "" {
		t.Errorf("全フィールドが設定されるべきです: %+v", body)
	}
}

func TestWriteInternalServerError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteInternalServerError(w)

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if w.Code != http.StatusInternalServerError || body.Code != "INTERNAL_ERROR" || body.Category != "system" {
		t.Errorf("status = %d, body = %+v", w.Code, body)
	}
}

func TestStatusForAPIError(t *testing.T) {
	tests := []struct {
		err  *model.APIError
		want int
	}{
		{model.NewLoginRequiredError(""), http.StatusUnauthorized},
		{model.NewForbiddenError(), http.StatusForbidden},
		{model.NewUnknownMarketError("x"), http.StatusNotFound},
		{model.NewUnknownInstrumentError("x"), http.StatusBadRequest},
		{model.NewUnknownPeriodError("x"), http.StatusBadRequest},
		{model.NewValidationError("x"), http.StatusBadRequest},
		{model.NewGatewayUnavailableError(), http.StatusBadGateway},
		{model.NewPayloadTooLargeError(1 << 20), http.StatusRequestEntityTooLarge},
		{&model.APIError{Code: "OTHER"}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusForAPIError(tt.err); got != tt.want {
			t.Errorf("StatusForAPIError(%s) = %d, want %d", tt.err.Code, got, tt.want)
		}
	}
}
