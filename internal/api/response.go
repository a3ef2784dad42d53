package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/studybuddy/biochem/internal/log"
)

// ErrorBody is the JSON error envelope all endpoints share.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response. Encoding happens into a buffer first so
// a failed encode can still produce a clean 500 before headers go out.
func WriteJSON(w http.ResponseWriter, status int, data any, logger log.Logger) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		logger.Error("encoding JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common, not worth more than debug.
		logger.Debug("writing response body", "error", err)
	}
}

// WriteError writes the standard error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string, logger log.Logger) {
	WriteJSON(w, status, map[string]ErrorBody{
		"error": {Code: code, Message: message},
	}, logger)
}
