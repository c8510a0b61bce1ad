package ws

import (
	"bytes"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the write side of one peer connection.
type Conn interface {
	WriteJSON(v any) error
	Ping() error
	CloseWithReason(code int, reason string) error
	Close() error
}

// connWrapper serializes writes; gorilla connections allow one concurrent writer.
type connWrapper struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	mutex        sync.Mutex
}

func newConnWrapper(c *websocket.Conn, writeTimeout time.Duration) *connWrapper {
	return &connWrapper{conn: c, writeTimeout: writeTimeout}
}

func (w *connWrapper) deadline() time.Time {
	if w.writeTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(w.writeTimeout)
}

// WriteJSON sends v as one text frame. HTML characters in relayed data are
// left unescaped.
func (w *connWrapper) WriteJSON(v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()
	_ = w.conn.SetWriteDeadline(w.deadline())
	return w.conn.WriteMessage(websocket.TextMessage, bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
}

func (w *connWrapper) Ping() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, nil, w.deadline())
}

func (w *connWrapper) CloseWithReason(code int, reason string) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, w.deadline())
	return w.conn.Close()
}

func (w *connWrapper) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.conn.Close()
}
