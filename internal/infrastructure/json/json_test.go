package json

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteError_HidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteInternalError(rec, errors.New("secret stack detail"), "")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rec.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error != "Internal Server Error" || resp.Message != "An unexpected error occurred" {
		t.Fatalf("resp=%+v", resp)
	}
}

func TestWriteRateLimitError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteRateLimitError(rec, 3)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "3" {
		t.Fatalf("Retry-After=%q", got)
	}
}

func TestWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := Write(rec, http.StatusOK, map[string]bool{"existed": true}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("Content-Type=%q", rec.Header().Get("Content-Type"))
	}
	if rec.Body.String() != "{\"existed\":true}\n" {
		t.Fatalf("body=%q", rec.Body.String())
	}
}

func TestWrite_KeepsHTMLCharacters(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := Write(rec, http.StatusOK, []json.RawMessage{json.RawMessage(`{"sdp":"a=<x>&y"}`)}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := rec.Body.String(); got != "[{\"sdp\":\"a=<x>&y\"}]\n" {
		t.Fatalf("body=%q", got)
	}
}

func TestWriteRaw(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := WriteRaw(rec, http.StatusOK, []byte(`{"sdp":"a=<x>&y"}`)); err != nil {
		t.Fatalf("WriteRaw: %v", err)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("Content-Type=%q", rec.Header().Get("Content-Type"))
	}
	if got := rec.Body.String(); got != `{"sdp":"a=<x>&y"}` {
		t.Fatalf("body=%q", got)
	}
}
