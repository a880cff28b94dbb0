package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/camilo-ai/camilo/internal/chat"
	"github.com/camilo-ai/camilo/internal/llm"
	"github.com/camilo-ai/camilo/internal/log"
	"github.com/camilo-ai/camilo/internal/prompt"
	"github.com/camilo-ai/camilo/internal/retrieval"
)

// MessageHandler handles the reply endpoint.
type MessageHandler struct {
	assistant *chat.Assistant
	logger    log.Logger
}

// RegisterRoutes registers message routes on the given mux.
func (h *MessageHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /message", h.send)
}

// messageRequest is the POST /message request body.
type messageRequest struct {
	SessionID string           `json:"sessionId"`
	Messages  []messagePayload `json:"messages"`
}

type messagePayload struct {
	Content         string `json:"content"`
	IsFromAssistant bool   `json:"isFromAssistant"`
}

// messageResponse is the POST /message response body. LinkData maps the
// retrieved segment ids to their source URLs for attribution rendering.
type messageResponse struct {
	Reply     string           `json:"reply"`
	LinkData  map[int64]string `json:"linkData"`
	SessionID string           `json:"sessionId"`
}

// send produces one persona reply for the supplied message sequence.
func (h *MessageHandler) send(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "messages must not be empty")
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	messages := make([]retrieval.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, retrieval.Message{
			Content:       m.Content,
			FromAssistant: m.IsFromAssistant,
		})
	}

	reply, err := h.assistant.Respond(r.Context(), sessionID, messages)
	if err != nil {
		h.writeRespondError(w, sessionID, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Reply:     reply.Text,
		LinkData:  reply.LinkData,
		SessionID: sessionID,
	})
}

// writeRespondError maps pipeline failures to HTTP statuses. A missing
// context is the caller's answer, not a server fault.
func (h *MessageHandler) writeRespondError(w http.ResponseWriter, sessionID string, err error) {
	h.logger.Error("message processing failed", "session_id", sessionID, "error", err)

	switch {
	case errors.Is(err, prompt.ErrNoContext):
		writeError(w, http.StatusUnprocessableEntity, "no_context",
			"nothing relevant found to answer from")
	case errors.Is(err, llm.ErrEmbedding), errors.Is(err, llm.ErrGeneration):
		writeError(w, http.StatusBadGateway, "backend_error", "generation backend failed")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to process message")
	}
}
