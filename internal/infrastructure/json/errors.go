package json

import (
	"encoding/json"
	"net/http"
	"strconv"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteError renders a short message only; err is never exposed to the client.
func WriteError(w http.ResponseWriter, status int, err error, msg string) {
	resp := ErrorResponse{
		Error:   http.StatusText(status),
		Message: msg,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func WriteBadRequestError(w http.ResponseWriter, err error, msg string) {
	WriteError(w, http.StatusBadRequest, err, msg)
}

func WritePayloadTooLargeError(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusRequestEntityTooLarge, err, "Payload too large")
}

func WriteInternalError(w http.ResponseWriter, err error, msg string) {
	if msg == "" {
		msg = "An unexpected error occurred"
	}
	WriteError(w, http.StatusInternalServerError, err, msg)
}

func WriteRateLimitError(w http.ResponseWriter, retryAfter int) {
	resp := ErrorResponse{
		Error:   http.StatusText(http.StatusTooManyRequests),
		Message: "Too many requests. Please try again later.",
	}

	w.Header().Set("Content-Type", "application/json")
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(resp)
}
