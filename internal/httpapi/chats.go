package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type createChatRequest struct {
	ReceiverID  string `json:"receiver_id"`
	DeviceToken string `json:"device_token"`
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	u := currentUser(r)
	if strings.TrimSpace(req.ReceiverID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "receiver_id is required")
		return
	}
	if req.ReceiverID == u.ID {
		respondError(w, http.StatusBadRequest, "invalid_request", "cannot open a chat with yourself")
		return
	}

	// A device token sent along with chat creation doubles as a late
	// registration for push.
	if token := strings.TrimSpace(req.DeviceToken); token != "" {
		if err := s.users.RegisterDevice(r.Context(), u.ID, token); err != nil && !errors.Is(err, errEmptyBody) {
			respondDomainError(w, err)
			return
		}
	}

	c, err := s.chats.CreateChat(r.Context(), u.ID, u.DisplayName, req.ReceiverID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := s.chats.ListChats(r.Context(), currentUser(r).ID, 100)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, chats)
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "content is required")
		return
	}

	u := currentUser(r)
	msg, err := s.chats.SendMessage(r.Context(), chi.URLParam(r, "chatID"), u.ID, u.DisplayName, req.Content)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.chats.ListMessages(r.Context(), chi.URLParam(r, "chatID"), currentUser(r).ID, 1000)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, msgs)
}
