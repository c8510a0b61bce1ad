package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cch137/webrtc-demo-2025-11/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	sent   chan domain.Envelope
	closed bool
	code   int
}

func newFakeConn() *fakeConn {
	return &fakeConn{sent: make(chan domain.Envelope, 16)}
}

func (f *fakeConn) WriteJSON(v any) error {
	env, ok := v.(domain.Envelope)
	if !ok {
		return errors.New("unexpected frame type")
	}
	f.sent <- env
	return nil
}

func (f *fakeConn) Ping() error { return nil }

func (f *fakeConn) CloseWithReason(code int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.code = code
	f.closed = true
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) expect(t *testing.T, want domain.Event) domain.Envelope {
	t.Helper()
	select {
	case env := <-f.sent:
		if env.Event != want {
			t.Fatalf("event=%q, want %q", env.Event, want)
		}
		return env
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
	return domain.Envelope{}
}

func (f *fakeConn) expectNothing(t *testing.T) {
	t.Helper()
	select {
	case env := <-f.sent:
		t.Fatalf("unexpected envelope %q", env.Event)
	case <-time.After(50 * time.Millisecond):
	}
}

func join(t *testing.T, rm *RoomManager, roomID string) (*Client, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	c, err := rm.Join(roomID, conn)
	if err != nil {
		t.Fatalf("Join(%q): %v", roomID, err)
	}
	go c.WritePump(0)
	t.Cleanup(func() { c.Leave() })
	return c, conn
}

func TestRoomManager_JoinLifecycle(t *testing.T) {
	rm := NewRoomManager(ManagerOptions{})

	_, first := join(t, rm, "room1")
	first.expectNothing(t)

	_, second := join(t, rm, "room1")
	first.expect(t, domain.EventOfferRequest)
	second.expectNothing(t)

	if _, err := rm.Join("room1", newFakeConn()); !errors.Is(err, domain.ErrRoomFull) {
		t.Fatalf("third Join err=%v, want ErrRoomFull", err)
	}
	if got := rm.RoomSize("room1"); got != 2 {
		t.Fatalf("RoomSize=%d after rejected join, want 2", got)
	}
}

func TestRoomManager_LeaveRemovesEmptyRoom(t *testing.T) {
	rm := NewRoomManager(ManagerOptions{})

	a, _ := join(t, rm, "room1")
	b, _ := join(t, rm, "room1")

	if !a.Leave() {
		t.Fatalf("Leave(a)=false")
	}
	if a.Leave() {
		t.Fatalf("second Leave(a)=true")
	}
	if !rm.HasRoom("room1") || rm.RoomSize("room1") != 1 {
		t.Fatalf("room should remain with one member")
	}

	if !b.Leave() {
		t.Fatalf("Leave(b)=false")
	}
	if rm.HasRoom("room1") || rm.Len() != 0 {
		t.Fatalf("empty room still registered")
	}
}

func TestRoomManager_RejoinStartsFresh(t *testing.T) {
	rm := NewRoomManager(ManagerOptions{})

	a, _ := join(t, rm, "room1")
	_, bConn := join(t, rm, "room1")
	a.Leave()

	_, cConn := join(t, rm, "room1")
	bConn.expect(t, domain.EventOfferRequest)
	cConn.expectNothing(t)
}

func TestClient_DispatchRelaysToOtherMember(t *testing.T) {
	rm := NewRoomManager(ManagerOptions{})

	a, aConn := join(t, rm, "room1")
	_, bConn := join(t, rm, "room1")
	aConn.expect(t, domain.EventOfferRequest)

	data := json.RawMessage(`{"candidate":"candidate:1 1 udp 2122260223 10.0.0.1 5000 typ host","sdpMid":"0"}`)
	a.Dispatch(domain.Envelope{Event: domain.EventCandidate, Data: data})

	got := bConn.expect(t, domain.EventCandidate)
	if string(got.Data) != string(data) {
		t.Fatalf("relayed data=%s, want %s", got.Data, data)
	}
	aConn.expectNothing(t)
}

func TestClient_DispatchPingAndUnknown(t *testing.T) {
	rm := NewRoomManager(ManagerOptions{})

	a, aConn := join(t, rm, "room1")
	_, bConn := join(t, rm, "room1")
	aConn.expect(t, domain.EventOfferRequest)

	a.Dispatch(domain.Envelope{Event: domain.EventPing})
	pong := aConn.expect(t, domain.EventPong)
	if len(pong.Data) != 0 {
		t.Fatalf("pong carried data %s", pong.Data)
	}

	a.Dispatch(domain.Envelope{Event: "chat", Data: json.RawMessage(`"hi"`)})
	a.Dispatch(domain.Envelope{Event: domain.EventOfferRequest})
	bConn.expectNothing(t)
}

func TestClient_RelayPreservesOrder(t *testing.T) {
	rm := NewRoomManager(ManagerOptions{})

	a, aConn := join(t, rm, "room1")
	_, bConn := join(t, rm, "room1")
	aConn.expect(t, domain.EventOfferRequest)

	events := []domain.Event{domain.EventOffer, domain.EventCandidates, domain.EventCandidatesRequest, domain.EventAnswer}
	for _, e := range events {
		a.Dispatch(domain.Envelope{Event: e})
	}
	for _, e := range events {
		bConn.expect(t, e)
	}
}

func TestClient_SendAfterLeave(t *testing.T) {
	rm := NewRoomManager(ManagerOptions{})
	a, _ := join(t, rm, "room1")
	a.Leave()

	if a.Send(domain.EventPong, nil) {
		t.Fatalf("Send after Leave reported success")
	}
}

func TestRoomManager_JoinRejectsEmptyKey(t *testing.T) {
	rm := NewRoomManager(ManagerOptions{})
	if _, err := rm.Join("", newFakeConn()); !errors.Is(err, domain.ErrInvalidKey) {
		t.Fatalf("Join(\"\") err=%v", err)
	}
}
