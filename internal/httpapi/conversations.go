package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type startDirectRequest struct {
	// Exactly one of these selects the other participant.
	UserID      string `json:"user_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// handleListConversations handles GET /api/v1/conversations.
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	convs, err := s.chat.Conversations(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

// handleStartDirect handles POST /api/v1/conversations/direct. The call
// is idempotent: repeating it, from either participant, returns the same
// conversation id.
func (s *Server) handleStartDirect(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	var req startDirectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	invitedID := req.UserID
	if invitedID == "" && req.DisplayName != "" {
		id, err := s.chat.UserIDByDisplayName(r.Context(), req.DisplayName)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		invitedID = id
	}

	convID, err := s.chat.StartDirectConversation(r.Context(), userID, invitedID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"conversation_id": convID})
}

// handleDeleteConversation handles DELETE /api/v1/conversations/:id.
func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	conversationID := chi.URLParam(r, "id")

	if err := s.chat.DeleteConversation(r.Context(), userID, conversationID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListMessages handles GET /api/v1/conversations/:id/messages. It
// returns the snapshot the client folds feed events onto: up to the page
// limit, oldest first.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	conversationID := chi.URLParam(r, "id")

	limit := s.cfg.MessagePage
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	msgs, err := s.chat.Messages(r.Context(), conversationID, userID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// handleSendMessage handles POST /api/v1/conversations/:id/messages.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	conversationID := chi.URLParam(r, "id")

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := s.chat.SendMessage(r.Context(), conversationID, userID, req.Content)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}
