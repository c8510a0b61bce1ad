package json

import (
	"encoding/json"
	"net/http"
)

// Write encodes data without HTML escaping so relayed payloads keep their bytes.
func Write(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(data)
}

// WriteRaw sends an already-encoded JSON document unchanged.
func WriteRaw(w http.ResponseWriter, status int, raw []byte) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(raw)
	return err
}
