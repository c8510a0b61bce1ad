package dss

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cch137/webrtc-demo-2025-11/internal/domain"
	"github.com/cch137/webrtc-demo-2025-11/internal/infrastructure/repository"
	"github.com/go-chi/chi/v5"
)

func newTestServer(t *testing.T, maxPayload int64) (*httptest.Server, *repository.Store) {
	t.Helper()
	store := repository.NewStore(repository.StoreOptions{})
	t.Cleanup(store.Destroy)

	h := NewHandler(store, maxPayload, nil)
	r := chi.NewRouter()
	r.Post("/data/{id}", h.PushHandler)
	r.Get("/data/{id}", h.PopHandler)
	r.Delete("/data/{id}", h.DeleteHandler)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store
}

func do(t *testing.T, method, url, body string) (int, string) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rdr)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer res.Body.Close()
	b, _ := io.ReadAll(res.Body)
	return res.StatusCode, strings.TrimSpace(string(b))
}

func TestDSS_PushThenPop(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	url := srv.URL + "/data/room1"

	if code, body := do(t, http.MethodPost, url, `{"type":"offer","data":"sdp"}`); code != http.StatusOK || body != "" {
		t.Fatalf("POST status=%d body=%q", code, body)
	}

	code, body := do(t, http.MethodGet, url, "")
	if code != http.StatusOK {
		t.Fatalf("GET status=%d", code)
	}
	if body != `{"type":"offer","data":"sdp"}` {
		t.Fatalf("GET body=%q", body)
	}

	if code, _ := do(t, http.MethodGet, url, ""); code != http.StatusNotFound {
		t.Fatalf("second GET status=%d, want 404", code)
	}
}

func TestDSS_PopReturnsExactBytes(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	url := srv.URL + "/data/sdp"
	const sdp = `{"sdp":"a=<x>&y"}`

	do(t, http.MethodPost, url, sdp)
	res, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer res.Body.Close()
	raw, _ := io.ReadAll(res.Body)
	if string(raw) != sdp {
		t.Fatalf("GET body=%q, want %q", raw, sdp)
	}

	do(t, http.MethodPost, url, sdp)
	if code, body := do(t, http.MethodGet, url+"?array=1", ""); code != http.StatusOK || body != "["+sdp+"]" {
		t.Fatalf("array status=%d body=%q", code, body)
	}
}

func TestDSS_PopUnknownKey(t *testing.T) {
	srv, store := newTestServer(t, 0)

	if code, _ := do(t, http.MethodGet, srv.URL+"/data/nobody", ""); code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", code)
	}
	if code, _ := do(t, http.MethodGet, srv.URL+"/data/nobody?array=1", ""); code != http.StatusNotFound {
		t.Fatalf("array status=%d, want 404", code)
	}
	if store.Len() != 0 {
		t.Fatalf("reading created a queue")
	}
}

func TestDSS_InvalidJSON(t *testing.T) {
	srv, store := newTestServer(t, 0)

	for _, body := range []string{"", "{not json", `{"a":1}{"b":2}`} {
		code, resp := do(t, http.MethodPost, srv.URL+"/data/k", body)
		if code != http.StatusBadRequest {
			t.Fatalf("body %q: status=%d, want 400", body, code)
		}
		if body != "" && !strings.Contains(resp, "Invalid JSON") {
			t.Fatalf("body %q: response %q", body, resp)
		}
	}
	if store.SizeOf("k") != 0 {
		t.Fatalf("invalid bodies were stored")
	}
}

func TestDSS_PayloadTooLarge(t *testing.T) {
	srv, store := newTestServer(t, 16)

	big := `{"data":"` + strings.Repeat("x", 64) + `"}`
	code, _ := do(t, http.MethodPost, srv.URL+"/data/k", big)
	if code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d, want 413", code)
	}
	if store.SizeOf("k") != 0 {
		t.Fatalf("oversized payload stored")
	}

	if code, _ := do(t, http.MethodPost, srv.URL+"/data/k", `{"a":1}`); code != http.StatusOK {
		t.Fatalf("small payload status=%d", code)
	}
}

func TestDSS_PayloadTooLargeWithoutContentLength(t *testing.T) {
	store := repository.NewStore(repository.StoreOptions{})
	defer store.Destroy()
	h := NewHandler(store, 16, nil)

	body := bytes.NewBufferString(`{"data":"` + strings.Repeat("x", 64) + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/data/k", io.NopCloser(body))
	req.ContentLength = -1
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "k")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	h.PushHandler(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d, want 413", rec.Code)
	}
}

func TestDSS_ArrayDrainsQueue(t *testing.T) {
	srv, store := newTestServer(t, 0)
	url := srv.URL + "/data/cands"

	for _, c := range []string{`{"c":1}`, `{"c":2}`, `{"c":3}`} {
		if code, _ := do(t, http.MethodPost, url, c); code != http.StatusOK {
			t.Fatalf("POST %s status=%d", c, code)
		}
	}

	code, body := do(t, http.MethodGet, url+"?array=true", "")
	if code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}

	var got []map[string]int
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
	if len(got) != 3 || got[0]["c"] != 1 || got[2]["c"] != 3 {
		t.Fatalf("drained %v", got)
	}
	if store.SizeOf("cands") != 0 {
		t.Fatalf("queue not removed after drain")
	}
}

func TestDSS_EmptyArrayParamIsSinglePop(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	url := srv.URL + "/data/k"

	do(t, http.MethodPost, url, `1`)
	do(t, http.MethodPost, url, `2`)

	code, body := do(t, http.MethodGet, url+"?array=", "")
	if code != http.StatusOK || body != "1" {
		t.Fatalf("status=%d body=%q, want single pop", code, body)
	}
}

func TestDSS_NotFrom(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	url := srv.URL + "/data/sig"

	do(t, http.MethodPost, url, `{"from":"A","sdp":"a1"}`)
	do(t, http.MethodPost, url, `{"from":"B","sdp":"b1"}`)

	code, body := do(t, http.MethodGet, url+"?not_from=A", "")
	if code != http.StatusOK || body != `{"from":"B","sdp":"b1"}` {
		t.Fatalf("status=%d body=%q", code, body)
	}

	if code, _ := do(t, http.MethodGet, url+"?not_from=A", ""); code != http.StatusNotFound {
		t.Fatalf("only own payloads left, status=%d, want 404", code)
	}

	code, body = do(t, http.MethodGet, url, "")
	if code != http.StatusOK || body != `{"from":"A","sdp":"a1"}` {
		t.Fatalf("unfiltered status=%d body=%q", code, body)
	}
}

func TestDSS_OnceRemovesQueue(t *testing.T) {
	srv, store := newTestServer(t, 0)
	url := srv.URL + "/data/o"

	do(t, http.MethodPost, url, `{"once":true,"v":1}`)
	do(t, http.MethodPost, url, `{"v":2}`)

	if code, _ := do(t, http.MethodGet, url, ""); code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	if store.SizeOf("o") != 0 {
		t.Fatalf("once payload left %d entries", store.SizeOf("o"))
	}
}

func TestDSS_Delete(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	url := srv.URL + "/data/d"

	do(t, http.MethodPost, url, `{}`)

	code, body := do(t, http.MethodDelete, url, "")
	if code != http.StatusOK || body != `{"existed":true}` {
		t.Fatalf("status=%d body=%q", code, body)
	}
	code, body = do(t, http.MethodDelete, url, "")
	if code != http.StatusOK || body != `{"existed":false}` {
		t.Fatalf("second delete status=%d body=%q", code, body)
	}
}

func TestDSS_DestroyedStore(t *testing.T) {
	srv, store := newTestServer(t, 0)
	store.Destroy()

	if code, _ := do(t, http.MethodPost, srv.URL+"/data/k", `{}`); code != http.StatusInternalServerError {
		t.Fatalf("POST status=%d, want 500", code)
	}
	if code, _ := do(t, http.MethodGet, srv.URL+"/data/k", ""); code != http.StatusInternalServerError {
		t.Fatalf("GET status=%d, want 500", code)
	}
}

type failingStore struct{ err error }

func (f failingStore) Push(string, domain.Payload) error { return f.err }
func (f failingStore) Pop(string, ...repository.ReadOption) (domain.Payload, bool, error) {
	return nil, false, f.err
}
func (f failingStore) PopAll(string) ([]domain.Payload, bool, error) { return nil, false, f.err }
func (f failingStore) Delete(string) (bool, error)                  { return false, f.err }

func TestDSS_UnexpectedStoreErrorIsHidden(t *testing.T) {
	h := NewHandler(failingStore{err: errors.New("disk on fire")}, 0, nil)

	req := httptest.NewRequest(http.MethodDelete, "/data/k", nil)
	rec := httptest.NewRecorder()
	h.DeleteHandler(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "disk on fire") {
		t.Fatalf("internal error leaked: %s", rec.Body.String())
	}
}
