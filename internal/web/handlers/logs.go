package handlers

import (
	"net/http"

	"github.com/kozaktomas/immich-metasync/internal/constants"
	"github.com/kozaktomas/immich-metasync/internal/logging"
)

// LogsHandler serves the most recent log lines
type LogsHandler struct {
	buffer *logging.RingBuffer
}

// NewLogsHandler creates a new logs handler
func NewLogsHandler(buffer *logging.RingBuffer) *LogsHandler {
	return &LogsHandler{buffer: buffer}
}

// Get returns up to ?lines= of the newest log lines, oldest first
func (h *LogsHandler) Get(w http.ResponseWriter, r *http.Request) {
	lines, ok := queryInt(r, "lines", constants.DefaultLogLines)
	if !ok {
		respondError(w, http.StatusBadRequest, "lines must be a positive integer")
		return
	}

	out := []string{}
	if h.buffer != nil {
		if tail := h.buffer.Tail(lines); len(tail) > 0 {
			out = tail
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"lines": out,
		"count": len(out),
	})
}
