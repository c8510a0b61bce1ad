package ws

import (
	"encoding/json"
	"sync"

	"github.com/cch137/webrtc-demo-2025-11/internal/domain"
	"github.com/cch137/webrtc-demo-2025-11/internal/infrastructure/logging"
)

const (
	MaxRoomMembers    = 2
	DefaultSendBuffer = 64
)

// BrokerObserver receives room broker activity, typically for metrics.
type BrokerObserver interface {
	RoomCountChanged(n int)
	ClientJoined()
	ClientLeft()
	RoomRejected()
	EventReceived(event string)
}

type nopObserver struct{}

func (nopObserver) RoomCountChanged(int) {}
func (nopObserver) ClientJoined() {}
func (nopObserver) ClientLeft() {}
func (nopObserver) RoomRejected() {}
func (nopObserver) EventReceived(string) {}

// Room holds at most MaxRoomMembers clients. Its state is guarded by the
// owning RoomManager.
type Room struct {
	ID      string
	clients []*Client
}

func (r *Room) indexOf(c *Client) int {
	for i, cl := range r.clients {
		if cl == c {
			return i
		}
	}
	return -1
}

type ManagerOptions struct {
	SendBuffer int
	Logger     logging.Logger
	Observer   BrokerObserver
}

// RoomManager is the registry of live rooms. A key with no members has no Room.
type RoomManager struct {
	rooms      map[string]*Room // roomID → Room
	sendBuffer int
	logger     logging.Logger
	observer   BrokerObserver
	mu         sync.Mutex
}

func NewRoomManager(options ManagerOptions) *RoomManager {
	if options.SendBuffer <= 0 {
		options.SendBuffer = DefaultSendBuffer
	}
	if options.Logger == nil {
		options.Logger = logging.NewNop()
	}
	if options.Observer == nil {
		options.Observer = nopObserver{}
	}

	return &RoomManager{
		rooms:      make(map[string]*Room),
		sendBuffer: options.SendBuffer,
		logger:     options.Logger,
		observer:   options.Observer,
	}
}

// Join admits conn into the room for roomID, creating the room if needed. The
// second member's admission sends offer-request to the first.
func (rm *RoomManager) Join(roomID string, conn Conn) (*Client, error) {
	if roomID == "" {
		return nil, domain.ErrInvalidKey
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	room, ok := rm.rooms[roomID]
	if !ok {
		room = &Room{ID: roomID, clients: make([]*Client, 0, MaxRoomMembers)}
	}

	if len(room.clients) >= MaxRoomMembers {
		rm.observer.RoomRejected()
		return nil, domain.ErrRoomFull
	}

	if !ok {
		rm.rooms[roomID] = room
		rm.observer.RoomCountChanged(len(rm.rooms))
	}

	client := newClient(conn, room, rm, rm.sendBuffer)
	room.clients = append(room.clients, client)
	rm.observer.ClientJoined()

	if len(room.clients) > 1 {
		rm.emitToOthers(room, client, domain.EventOfferRequest, nil)
	}

	return client, nil
}

// Leave removes c from its room and deletes the room once empty. It reports
// whether c was still a member.
func (rm *RoomManager) Leave(c *Client) bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	room := c.room
	i := room.indexOf(c)
	if i == -1 {
		return false
	}

	room.clients = append(room.clients[:i], room.clients[i+1:]...)
	c.close()
	rm.observer.ClientLeft()

	if len(room.clients) == 0 && rm.rooms[room.ID] == room {
		delete(rm.rooms, room.ID)
		rm.observer.RoomCountChanged(len(rm.rooms))
	}
	return true
}

// EmitToOthers queues an envelope for every member of sender's room except sender.
func (rm *RoomManager) EmitToOthers(sender *Client, event domain.Event, data json.RawMessage) int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.emitToOthers(sender.room, sender, event, data)
}

// emitToOthers must be called with mu held.
func (rm *RoomManager) emitToOthers(room *Room, sender *Client, event domain.Event, data json.RawMessage) int {
	sent := 0
	for _, cl := range room.clients {
		if cl == sender {
			continue
		}
		if cl.Send(event, data) {
			sent++
		}
	}
	return sent
}

// RoomSize returns the member count for roomID, 0 when absent.
func (rm *RoomManager) RoomSize(roomID string) int {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if room, ok := rm.rooms[roomID]; ok {
		return len(room.clients)
	}
	return 0
}

func (rm *RoomManager) HasRoom(roomID string) bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	_, ok := rm.rooms[roomID]
	return ok
}

// Len returns the number of live rooms.
func (rm *RoomManager) Len() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.rooms)
}
