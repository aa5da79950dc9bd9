package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// The mailbox itself is free of chat-membership logic; the participant
// check for every signaling operation lives here at the boundary.
func (s *Server) authorizeChat(ctx context.Context, w http.ResponseWriter, chatID, userID string) bool {
	if _, err := s.chats.Participants(ctx, chatID, userID); err != nil {
		respondDomainError(w, err)
		return false
	}
	return true
}

type depositRequest struct {
	Payload json.RawMessage `json:"payload"`
}

type depositFunc func(ctx context.Context, chatID, senderID string, payload json.RawMessage) error

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request, deposit depositFunc) {
	chatID := chi.URLParam(r, "chatID")
	u := currentUser(r)
	if !s.authorizeChat(r.Context(), w, chatID, u.ID) {
		return
	}

	var req depositRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := deposit(r.Context(), chatID, u.ID, req.Payload); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"message": "stored"})
}

func (s *Server) handleDepositOffer(w http.ResponseWriter, r *http.Request) {
	s.handleDeposit(w, r, s.mailbox.DepositOffer)
}

func (s *Server) handleDepositAnswer(w http.ResponseWriter, r *http.Request) {
	s.handleDeposit(w, r, s.mailbox.DepositAnswer)
}

func (s *Server) handleDepositCandidate(w http.ResponseWriter, r *http.Request) {
	s.handleDeposit(w, r, s.mailbox.DepositCandidate)
}

func (s *Server) handleFetchOffer(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	u := currentUser(r)
	if !s.authorizeChat(r.Context(), w, chatID, u.ID) {
		return
	}

	rec, err := s.mailbox.FetchOffer(r.Context(), chatID, u.ID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleFetchAnswer(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	u := currentUser(r)
	if !s.authorizeChat(r.Context(), w, chatID, u.ID) {
		return
	}

	rec, err := s.mailbox.FetchAnswer(r.Context(), chatID, u.ID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleFetchCandidates(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	u := currentUser(r)
	if !s.authorizeChat(r.Context(), w, chatID, u.ID) {
		return
	}

	recs, err := s.mailbox.FetchCandidates(r.Context(), chatID, u.ID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, recs)
}
