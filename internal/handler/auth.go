package handler

import (
	"net/http"
	"strings"

	"github.com/xenking/techstore/internal/domain/auth"
	"github.com/xenking/techstore/internal/domain/user"
)

const bearerPrefix = "Bearer "

// RequireAuth rejects requests without a valid bearer token and stores the
// caller identity in the request context.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
			writeMessage(w, http.StatusUnauthorized, "access token not provided")
			return
		}
		id, err := h.users.Authenticate(strings.TrimSpace(header[len(bearerPrefix):]))
		if err != nil {
			writeError(w, r, user.ErrInvalidToken)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.FromContext(r.Context())
		if !ok || !id.IsAdmin() {
			writeMessage(w, http.StatusForbidden, "administrator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}
