package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/prudhvinik1/homesync/internal/repositories"
	"github.com/prudhvinik1/homesync/internal/services"
)

type contextKey string

const claimsKey contextKey = "claims"

// requireSession resolves the bearer token into server-attributed
// claims. The session lookup makes logout and device revocation take
// effect immediately even for unexpired tokens.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := s.auth.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		_, err = s.sessions.GetByID(r.Context(), claims.SessionID)
		if errors.Is(err, repositories.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "session expired")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to check session")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) *services.TokenClaims {
	claims, _ := ctx.Value(claimsKey).(*services.TokenClaims)
	return claims
}
