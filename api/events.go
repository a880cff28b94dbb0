package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/camilo-ai/camilo/internal/events"
	"github.com/camilo-ai/camilo/internal/log"
)

// EventsHandler streams generation status events over SSE.
type EventsHandler struct {
	broker *events.Broker
	logger log.Logger
}

// RegisterRoutes registers the SSE route on the given mux.
func (h *EventsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /events", h.stream)
}

// stream subscribes the client to one session's events and forwards
// them as JSON-encoded SSE frames until the client disconnects.
func (h *EventsHandler) stream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "session query parameter is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported",
			"response writer does not support streaming")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, cancel := h.broker.Subscribe(sessionID)
	defer cancel()

	h.logger.Debug("event stream opened", "session_id", sessionID)
	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("event stream closed", "session_id", sessionID)
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if err := writeEvent(w, event); err != nil {
				h.logger.Debug("event write failed", "session_id", sessionID, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

// writeEvent writes one event as an SSE frame with a JSON data payload.
func writeEvent(w http.ResponseWriter, event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return fmt.Errorf("writing event frame: %w", err)
	}
	return nil
}
