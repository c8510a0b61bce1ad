package domain

import "encoding/json"

// Event is a relay event name carried in the WebSocket envelope.
type Event string

const (
	EventPing              Event = "ping"
	EventPong              Event = "pong"
	EventOffer             Event = "offer"
	EventAnswer            Event = "answer"
	EventCandidate         Event = "candidate"
	EventCandidates        Event = "candidates"
	EventCandidatesRequest Event = "candidates-request"
	EventOfferRequest      Event = "offer-request"
)

// IsRelayed reports whether e is forwarded verbatim to the other room member.
func (e Event) IsRelayed() bool {
	switch e {
	case EventOffer, EventAnswer, EventCandidate, EventCandidates, EventCandidatesRequest:
		return true
	}
	return false
}

// Envelope is the wire format of every WebSocket frame.
type Envelope struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}
