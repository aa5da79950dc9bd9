package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kriptonit/backend/internal/calls"
)

func (s *Server) handleOpenCall(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	sess, err := s.calls.OpenSession(r.Context(), chi.URLParam(r, "chatID"), u.ID, u.DisplayName)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	status := calls.Status(strings.TrimSpace(r.URL.Query().Get("status")))
	switch status {
	case "", calls.StatusPending, calls.StatusAccepted, calls.StatusRejected, calls.StatusEnded:
	default:
		respondError(w, http.StatusBadRequest, "invalid_status", "unknown status filter")
		return
	}

	sessions, err := s.calls.ListByUser(r.Context(), currentUser(r).ID, status, 50)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	sess, err := s.calls.GetSession(r.Context(), chi.URLParam(r, "callID"), currentUser(r).ID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

type respondCallRequest struct {
	Action string `json:"action"`
}

func (s *Server) handleRespondCall(w http.ResponseWriter, r *http.Request) {
	var req respondCallRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	action, ok := calls.ParseRespondAction(strings.TrimSpace(req.Action))
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_action", "action must be accept or reject")
		return
	}

	sess, err := s.calls.Respond(r.Context(), chi.URLParam(r, "callID"), currentUser(r).ID, action)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleEndCall(w http.ResponseWriter, r *http.Request) {
	sess, err := s.calls.EndSession(r.Context(), chi.URLParam(r, "callID"), currentUser(r).ID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}
