package rooms

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cch137/webrtc-demo-2025-11/internal/domain"
	"github.com/cch137/webrtc-demo-2025-11/internal/infrastructure/ws"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T, origins []string) (string, *ws.RoomManager) {
	t.Helper()
	rm := ws.NewRoomManager(ws.ManagerOptions{})
	h := NewHandler(rm, ws.SessionOptions{MaxMessageBytes: 64 * 1024, WriteTimeout: time.Second}, origins, nil)

	r := chi.NewRouter()
	r.Get("/rooms/{id}", h.JoinRoomHandler)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http"), rm
}

func dial(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestJoinRoom_PairAndReject(t *testing.T) {
	base, rm := newTestServer(t, nil)

	a := dial(t, base+"/rooms/abc", nil)
	waitFor(t, func() bool { return rm.RoomSize("abc") == 1 })
	b := dial(t, base+"/rooms/abc", nil)

	_ = a.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env domain.Envelope
	if err := a.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	if env.Event != domain.EventOfferRequest {
		t.Fatalf("first member got %q", env.Event)
	}

	if err := b.WriteJSON(map[string]any{"event": "answer", "data": map[string]string{"sdp": "x"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := a.ReadJSON(&env); err != nil {
		t.Fatalf("read answer: %v", err)
	}
	if env.Event != domain.EventAnswer || string(env.Data) != `{"sdp":"x"}` {
		t.Fatalf("relayed %q %s", env.Event, env.Data)
	}

	c := dial(t, base+"/rooms/abc", nil)
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := c.ReadMessage()
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) || closeErr.Code != ws.CloseRoomFull || closeErr.Text != ws.CloseRoomFullReason {
		t.Fatalf("third member err=%v, want close %d", err, ws.CloseRoomFull)
	}
}

func TestJoinRoom_OriginAllowList(t *testing.T) {
	base, _ := newTestServer(t, []string{"http://localhost:3000"})

	dial(t, base+"/rooms/o", http.Header{"Origin": {"http://localhost:3000"}})
	dial(t, base+"/rooms/p", nil)

	_, res, err := websocket.DefaultDialer.Dial(base+"/rooms/q", http.Header{"Origin": {"https://evil.example"}})
	if err == nil {
		t.Fatalf("dial from disallowed origin succeeded")
	}
	if res == nil || res.StatusCode != http.StatusForbidden {
		t.Fatalf("response=%v, want 403", res)
	}
}
