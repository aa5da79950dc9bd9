package httpapi

import (
	"errors"
	"net/http"
	"strings"
)

type createAnonymousRequest struct {
	DeviceToken string `json:"device_token"`
}

func (s *Server) handleCreateAnonymous(w http.ResponseWriter, r *http.Request) {
	var req createAnonymousRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := s.users.CreateAnonymous(r.Context(), req.DeviceToken)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, currentUser(r))
}

type registerDeviceRequest struct {
	DeviceToken string `json:"device_token"`
}

func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.DeviceToken) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "device_token is required")
		return
	}

	if err := s.users.RegisterDevice(r.Context(), currentUser(r).ID, req.DeviceToken); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "device registered"})
}
