package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// healthCheckTimeout bounds each dependency probe of the health endpoint.
const healthCheckTimeout = 5 * time.Second

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// sendSSEEvent writes one server-sent event and flushes it.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}

// queryInt parses an integer query parameter, falling back to def when the
// parameter is absent. ok is false when the value is not a positive integer.
func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Pinger reports whether the Immich API answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// VersionFunc reports the exiftool version.
type VersionFunc func(ctx context.Context) (string, error)

// HealthHandler handles the health check endpoint.
type HealthHandler struct {
	api      Pinger
	exiftool VersionFunc
	logger   zerolog.Logger
}

// NewHealthHandler creates a health handler. Nil probes are reported as
// unconfigured and do not degrade the status.
func NewHealthHandler(api Pinger, exiftool VersionFunc, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{api: api, exiftool: exiftool, logger: logger}
}

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status   string `json:"status"`
	Immich   string `json:"immich"`
	Exiftool string `json:"exiftool"`
	Version  string `json:"exiftool_version,omitempty"`
}

// Get probes the Immich API and exiftool. Any failing probe answers 503.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Immich: "unconfigured", Exiftool: "unconfigured"}
	if h.api != nil {
		if err := h.api.Ping(ctx); err != nil {
			h.logger.Warn().Err(err).Msg("health check: Immich API unreachable")
			resp.Immich = "unreachable"
			resp.Status = "degraded"
		} else {
			resp.Immich = "ok"
		}
	}
	if h.exiftool != nil {
		version, err := h.exiftool(ctx)
		if err != nil {
			h.logger.Warn().Err(err).Msg("health check: exiftool unavailable")
			resp.Exiftool = "unavailable"
			resp.Status = "degraded"
		} else {
			resp.Exiftool = "ok"
			resp.Version = version
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, resp)
}
