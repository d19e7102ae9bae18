package web

// handlers_common.go holds the response envelope and the small helpers
// shared across handlers.

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// envelope is the JSON shape of every response. Success responses carry
// data and an optional message; failures carry the error body.
type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Message string     `json:"message,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
}

// writeData writes a success envelope with the given status.
func writeData(w http.ResponseWriter, status int, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data, Message: message}); err != nil {
		slog.Error("response encoding failed", "error", err)
	}
}

// writeUserError writes msg as an error envelope with its status.
func writeUserError(w http.ResponseWriter, msg UserMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(msg.Status)
	err := json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error:   &errorBody{Code: msg.Code, Message: msg.Message, Action: msg.Action},
	})
	if err != nil {
		slog.Error("response encoding failed", "error", err)
	}
}

// parseIntParam parses an integer query parameter with a default value.
// Values below 1 fall back to the default.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// setupSSE switches the response to an event stream and returns the
// flusher. Responds with an error when the connection cannot stream.
func setupSSE(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeUserError(w, UserMessage{
			Message: "Streaming is not supported on this connection",
			Action:  "Poll the snapshot endpoint instead",
			Code:    CodeProcessingError,
			Status:  http.StatusInternalServerError,
		})
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	return flusher, true
}
