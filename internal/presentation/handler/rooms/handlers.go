package rooms

import (
	"net/http"

	"github.com/cch137/webrtc-demo-2025-11/internal/infrastructure/logging"
	"github.com/cch137/webrtc-demo-2025-11/internal/infrastructure/ws"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type Handler struct {
	roomManager    *ws.RoomManager
	sessionOptions ws.SessionOptions
	allowedOrigins map[string]struct{}
	upgrader       websocket.Upgrader
	logger         logging.Logger
}

// NewHandler builds the room upgrade handler. An empty allowedOrigins list
// accepts any origin.
func NewHandler(roomManager *ws.RoomManager, options ws.SessionOptions, allowedOrigins []string, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}

	h := &Handler{
		roomManager:    roomManager,
		sessionOptions: options,
		allowedOrigins: make(map[string]struct{}, len(allowedOrigins)),
		logger:         logger,
	}
	for _, o := range allowedOrigins {
		h.allowedOrigins[o] = struct{}{}
	}

	h.upgrader = websocket.Upgrader{
		CheckOrigin:     h.checkOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.allowedOrigins) == 0 {
		return true
	}
	_, ok := h.allowedOrigins[origin]
	return ok
}

// JoinRoomHandler godoc
// @Summary      Join a two-member signaling room
// @Description  Upgrades to WebSocket and joins room id. The second member triggers offer-request to the first; a third is closed with code 4000 "Room is full".
// @Tags         rooms
// @Param        id path string true "Room key"
// @Success      101 "Switching protocols"
// @Failure      403 "Origin not allowed"
// @Router       /rooms/{id} [get]
func (h *Handler) JoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(logging.Broker, logging.Join, "websocket upgrade failed", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	ws.NewSession(h.roomManager, conn, roomID, h.sessionOptions).Serve()
}
