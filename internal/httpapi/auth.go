package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/kriptonit/backend/internal/users"
)

type contextKey string

const userContextKey contextKey = "current_user"

// requireUser resolves the bearer token and injects the account into the
// request context. Websocket clients may pass the token as a query
// parameter since browsers cannot set headers on upgrade requests.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "missing_token", "authorization required")
			return
		}

		u, err := s.users.Authenticate(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, users.ErrBlocked):
				respondError(w, http.StatusForbidden, "blocked", "user is blocked")
			case errors.Is(err, users.ErrInvalidToken), errors.Is(err, users.ErrNotFound):
				respondError(w, http.StatusUnauthorized, "invalid_token", "invalid or expired token")
			default:
				respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func currentUser(r *http.Request) users.User {
	u, _ := r.Context().Value(userContextKey).(users.User)
	return u
}
