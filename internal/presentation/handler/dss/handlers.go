package dss

import (
	"errors"
	"io"
	"net/http"

	"github.com/cch137/webrtc-demo-2025-11/internal/domain"
	"github.com/cch137/webrtc-demo-2025-11/internal/infrastructure/json"
	"github.com/cch137/webrtc-demo-2025-11/internal/infrastructure/logging"
	"github.com/cch137/webrtc-demo-2025-11/internal/infrastructure/repository"
	"github.com/cch137/webrtc-demo-2025-11/internal/infrastructure/tracing"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultMaxPayloadBytes = 64 * 1024

type QueueStore interface {
	Push(id string, p domain.Payload) error
	Pop(id string, opts ...repository.ReadOption) (domain.Payload, bool, error)
	PopAll(id string) ([]domain.Payload, bool, error)
	Delete(id string) (bool, error)
}

type Handler struct {
	store           QueueStore
	maxPayloadBytes int64
	logger          logging.Logger
	tracer          trace.Tracer
}

func NewHandler(store QueueStore, maxPayloadBytes int64, logger logging.Logger) *Handler {
	if maxPayloadBytes <= 0 {
		maxPayloadBytes = DefaultMaxPayloadBytes
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Handler{
		store:           store,
		maxPayloadBytes: maxPayloadBytes,
		logger:          logger,
		tracer:          tracing.GetTracer("dss"),
	}
}

// PushHandler godoc
// @Summary      Push a signaling payload
// @Description  Appends one JSON payload to the queue for id, creating the queue if needed
// @Tags         dss
// @Accept       json
// @Param        id path string true "Queue key"
// @Success      200 "Payload queued"
// @Failure      400 {object} json.ErrorResponse "Invalid JSON"
// @Failure      413 {object} json.ErrorResponse "Payload too large"
// @Failure      500 {object} json.ErrorResponse "Queue full or store unavailable"
// @Router       /data/{id} [post]
func (h *Handler) PushHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	_, span := h.tracer.Start(r.Context(), "dss.push", trace.WithAttributes(attribute.String("dss.id", id)))
	defer span.End()

	if r.ContentLength > h.maxPayloadBytes {
		json.WritePayloadTooLargeError(w, domain.ErrPayloadTooLarge)
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxPayloadBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			json.WritePayloadTooLargeError(w, domain.ErrPayloadTooLarge)
			return
		}
		json.WriteBadRequestError(w, err, "Unreadable body")
		return
	}

	payload, err := domain.NewPayload(raw)
	if err != nil {
		json.WriteBadRequestError(w, err, "Invalid JSON")
		return
	}

	h.logger.Debug(logging.Store, logging.Push, "payload received", map[logging.ExtraKey]any{
		logging.QueueID:     id,
		logging.RequestBody: string(payload),
	})

	if err := h.store.Push(id, payload); err != nil {
		h.writeStoreError(w, span, logging.Push, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// PopHandler godoc
// @Summary      Read signaling payloads
// @Description  Pops the next payload for id. With array set, drains the whole queue. With not_from, skips payloads whose "from" matches.
// @Tags         dss
// @Produce      json
// @Param        id path string true "Queue key"
// @Param        array query string false "Drain every queued payload as a JSON array"
// @Param        not_from query string false "Skip payloads authored by this peer"
// @Success      200 {object} any "Payload or array of payloads"
// @Failure      404 "Nothing to read"
// @Failure      500 {object} json.ErrorResponse "Store unavailable"
// @Router       /data/{id} [get]
func (h *Handler) PopHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	query := r.URL.Query()

	_, span := h.tracer.Start(r.Context(), "dss.pop", trace.WithAttributes(attribute.String("dss.id", id)))
	defer span.End()

	if query.Get("array") != "" {
		span.SetAttributes(attribute.Bool("dss.array", true))

		payloads, ok, err := h.store.PopAll(id)
		if err != nil {
			h.writeStoreError(w, span, logging.Pop, err)
			return
		}
		if !ok || len(payloads) == 0 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.Write(w, http.StatusOK, payloads)
		return
	}

	var opts []repository.ReadOption
	if query.Has("not_from") {
		opts = append(opts, repository.NotFrom(query.Get("not_from")))
	}

	payload, ok, err := h.store.Pop(id, opts...)
	if err != nil {
		h.writeStoreError(w, span, logging.Pop, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	h.logger.Debug(logging.Store, logging.Pop, "payload delivered", map[logging.ExtraKey]any{
		logging.QueueID: id,
	})
	_ = json.WriteRaw(w, http.StatusOK, payload)
}

// DeleteHandler godoc
// @Summary      Delete a queue
// @Tags         dss
// @Produce      json
// @Param        id path string true "Queue key"
// @Success      200 {object} deleteResponse
// @Failure      500 {object} json.ErrorResponse "Store unavailable"
// @Router       /data/{id} [delete]
func (h *Handler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	_, span := h.tracer.Start(r.Context(), "dss.delete", trace.WithAttributes(attribute.String("dss.id", id)))
	defer span.End()

	existed, err := h.store.Delete(id)
	if err != nil {
		h.writeStoreError(w, span, logging.Delete, err)
		return
	}

	_ = json.Write(w, http.StatusOK, deleteResponse{Existed: existed})
}

func (h *Handler) writeStoreError(w http.ResponseWriter, span trace.Span, sub logging.SubCategory, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	switch {
	case errors.Is(err, domain.ErrQueueFull), errors.Is(err, domain.ErrStoreDestroyed):
		json.WriteInternalError(w, err, err.Error())
	default:
		h.logger.Error(logging.Store, sub, "store operation failed", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w, err, "")
	}
}
