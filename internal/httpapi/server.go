package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/kriptonit/backend/internal/calls"
	"github.com/kriptonit/backend/internal/chat"
	"github.com/kriptonit/backend/internal/config"
	"github.com/kriptonit/backend/internal/events"
	"github.com/kriptonit/backend/internal/observability"
	"github.com/kriptonit/backend/internal/signaling"
	"github.com/kriptonit/backend/internal/users"
)

type Server struct {
	cfg      config.Config
	users    *users.Service
	chats    *chat.Service
	calls    *calls.Manager
	mailbox  *signaling.Mailbox
	hub      *events.Hub
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, userSvc *users.Service, chatSvc *chat.Service, callMgr *calls.Manager, mailbox *signaling.Mailbox, hub *events.Hub, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		users:   userSvc,
		chats:   chatSvc,
		calls:   callMgr,
		mailbox: mailbox,
		hub:     hub,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up for development.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/auth/anonymous", s.handleCreateAnonymous)

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)

			r.Get("/auth/me", s.handleMe)
			r.Post("/auth/device", s.handleRegisterDevice)

			r.Post("/chats", s.handleCreateChat)
			r.Get("/chats", s.handleListChats)
			r.Post("/chats/{chatID}/messages", s.handleSendMessage)
			r.Get("/chats/{chatID}/messages", s.handleListMessages)

			r.Post("/chats/{chatID}/call", s.handleOpenCall)
			r.Get("/calls", s.handleListCalls)
			r.Get("/calls/ws", s.handleCallEventsWS)
			r.Get("/calls/{callID}", s.handleGetCall)
			r.Post("/calls/{callID}/respond", s.handleRespondCall)
			r.Post("/calls/{callID}/end", s.handleEndCall)

			r.Route("/chats/{chatID}/webrtc", func(r chi.Router) {
				r.Post("/offer", s.handleDepositOffer)
				r.Get("/offer", s.handleFetchOffer)
				r.Post("/answer", s.handleDepositAnswer)
				r.Get("/answer", s.handleFetchAnswer)
				r.Post("/candidates", s.handleDepositCandidate)
				r.Get("/candidates", s.handleFetchCandidates)
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "kriptonit-backend",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// respondDomainError maps domain sentinels onto the HTTP taxonomy: a
// conflicting active call must stay distinguishable from a missing chat,
// and a membership failure from both.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, calls.ErrConflict):
		respondError(w, http.StatusConflict, "call_conflict", "an active call already exists for this chat")
	case errors.Is(err, chat.ErrNotParticipant):
		respondError(w, http.StatusForbidden, "not_participant", "user is not a participant of this chat")
	case errors.Is(err, calls.ErrNotFound),
		errors.Is(err, chat.ErrNotFound),
		errors.Is(err, signaling.ErrNotFound),
		errors.Is(err, users.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, signaling.ErrEmptyPayload):
		respondError(w, http.StatusBadRequest, "empty_payload", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
