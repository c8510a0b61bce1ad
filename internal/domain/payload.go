package domain

import (
	"bytes"
	"encoding/json"
)

// Payload is an opaque JSON document relayed between two peers.
type Payload json.RawMessage

// NewPayload validates raw as a single JSON value and returns a compacted copy.
func NewPayload(raw []byte) (Payload, error) {
	if !json.Valid(raw) {
		return nil, ErrInvalidPayload
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, ErrInvalidPayload
	}

	return Payload(buf.Bytes()), nil
}

func (p Payload) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return p, nil
}

// conventions holds the optional fields the relay inspects on object payloads.
type conventions struct {
	From *json.RawMessage `json:"from"`
	Once *json.RawMessage `json:"once"`
}

func (p Payload) conventions() (conventions, bool) {
	var c conventions
	trimmed := bytes.TrimLeft(p, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return c, false
	}
	if err := json.Unmarshal(p, &c); err != nil {
		return c, false
	}
	return c, true
}

// IsFrom reports whether p is an object whose "from" field is the string peer.
func (p Payload) IsFrom(peer string) bool {
	c, ok := p.conventions()
	if !ok || c.From == nil {
		return false
	}

	var from string
	if err := json.Unmarshal(*c.From, &from); err != nil {
		return false
	}
	return from == peer
}

// IsOnce reports whether p is an object carrying "once": true.
func (p Payload) IsOnce() bool {
	c, ok := p.conventions()
	if !ok || c.Once == nil {
		return false
	}

	var once bool
	if err := json.Unmarshal(*c.Once, &once); err != nil {
		return false
	}
	return once
}
