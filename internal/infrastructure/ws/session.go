package ws

import (
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cch137/webrtc-demo-2025-11/internal/domain"
	"github.com/cch137/webrtc-demo-2025-11/internal/infrastructure/logging"
	"github.com/gorilla/websocket"
)

const (
	CloseRoomFull       = 4000
	CloseRoomFullReason = "Room is full"
)

type connState int32

const (
	stateConnecting connState = iota
	stateOpen
	stateClosed
)

type SessionOptions struct {
	MaxMessageBytes int64
	WriteTimeout    time.Duration
	PingInterval    time.Duration
}

// Session drives one upgraded connection through Connecting → Open → Closed.
// The room binding exists only while Open and is torn down exactly once.
type Session struct {
	manager *RoomManager
	conn    *websocket.Conn
	wrapped *connWrapper
	roomID  string
	options SessionOptions

	state  atomic.Int32
	client *Client
}

func NewSession(manager *RoomManager, conn *websocket.Conn, roomID string, options SessionOptions) *Session {
	return &Session{
		manager: manager,
		conn:    conn,
		wrapped: newConnWrapper(conn, options.WriteTimeout),
		roomID:  roomID,
		options: options,
	}
}

// Serve joins the room and blocks reading frames until the peer disconnects.
func (s *Session) Serve() {
	if err := s.open(); err != nil {
		return
	}
	defer s.close()

	if s.options.MaxMessageBytes > 0 {
		s.conn.SetReadLimit(s.options.MaxMessageBytes)
	}

	go s.client.WritePump(s.options.PingInterval)

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.manager.logger.Debug(logging.Broker, logging.Leave, "ws read error", map[logging.ExtraKey]any{
					logging.RoomID:       s.roomID,
					logging.ClientID:     s.client.ID,
					logging.ErrorMessage: err.Error(),
				})
			}
			return
		}
		s.handleFrame(raw)
	}
}

func (s *Session) open() error {
	if !s.state.CompareAndSwap(int32(stateConnecting), int32(stateOpen)) {
		return domain.ErrClientClosed
	}

	client, err := s.manager.Join(s.roomID, s.wrapped)
	if err != nil {
		s.state.Store(int32(stateClosed))
		if errors.Is(err, domain.ErrRoomFull) {
			s.manager.logger.Warn(logging.Broker, logging.Join, "room is full", map[logging.ExtraKey]any{
				logging.RoomID: s.roomID,
			})
			_ = s.wrapped.CloseWithReason(CloseRoomFull, CloseRoomFullReason)
		} else {
			_ = s.wrapped.Close()
		}
		return err
	}

	s.client = client
	s.manager.logger.Info(logging.Broker, logging.Join, "room added a connection", map[logging.ExtraKey]any{
		logging.RoomID:   s.roomID,
		logging.ClientID: client.ID,
	})
	return nil
}

// close is safe to call from both the error and close paths.
func (s *Session) close() {
	if !s.state.CompareAndSwap(int32(stateOpen), int32(stateClosed)) {
		return
	}

	if s.client.Leave() {
		s.manager.logger.Info(logging.Broker, logging.Leave, "room removed a connection", map[logging.ExtraKey]any{
			logging.RoomID:   s.roomID,
			logging.ClientID: s.client.ID,
		})
	}
	_ = s.wrapped.Close()
}

type inboundEnvelope struct {
	Event json.RawMessage `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// handleFrame decodes one text or binary frame. Malformed frames and frames
// without a string event are ignored.
func (s *Session) handleFrame(raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.manager.logger.Error(logging.Broker, logging.Relay, "frame handler panicked", map[logging.ExtraKey]any{
				logging.RoomID:       s.roomID,
				logging.ErrorMessage: r,
			})
		}
	}()

	var in inboundEnvelope
	if err := json.Unmarshal(raw, &in); err != nil {
		return
	}

	var event string
	if err := json.Unmarshal(in.Event, &event); err != nil {
		return
	}

	env := domain.Envelope{Event: domain.Event(event), Data: in.Data}
	s.manager.observer.EventReceived(metricEventLabel(env.Event))
	s.manager.logger.Debug(logging.Broker, logging.Relay, "room event", map[logging.ExtraKey]any{
		logging.RoomID:    s.roomID,
		logging.EventName: event,
	})

	s.client.Dispatch(env)
}

func metricEventLabel(e domain.Event) string {
	if e == domain.EventPing || e.IsRelayed() {
		return string(e)
	}
	return "unknown"
}
