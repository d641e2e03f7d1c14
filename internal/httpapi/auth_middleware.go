package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/arawak/scenes/internal/auth"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	UserID int64
}

func principalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok
}

// principalMiddleware resolves an optional bearer token (Authorization header
// or ?token= query parameter) into a Principal. An absent token passes through
// anonymously; an invalid one is rejected so callers never act on a token they
// believe to be good.
func (s *Server) principalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		userID, err := s.auth.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token", "token is invalid or expired", nil)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey, &Principal{UserID: userID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin gates the management routes: an authenticated principal with
// the admin role, and when the whitelist is enforced, a whitelisted address.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := principalFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
			return
		}
		isAdmin, err := s.auth.HasRole(r.Context(), p.UserID, auth.AdminRole)
		if err != nil {
			s.storeError(w, err, "role check")
			return
		}
		if !isAdmin {
			writeError(w, http.StatusForbidden, "forbidden", "admin role required", nil)
			return
		}
		if s.cfg.EnforceIPWhitelist {
			allowed, err := s.auth.IPAllowed(r.Context(), r.RemoteAddr)
			if err != nil {
				s.storeError(w, err, "ip whitelist check")
				return
			}
			if !allowed {
				writeError(w, http.StatusForbidden, "forbidden", "address not whitelisted", nil)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// isAuthorized reports whether the request carries a valid principal. Used by
// public routes that reveal more to authenticated callers.
func (s *Server) isAuthorized(r *http.Request) bool {
	_, ok := principalFrom(r.Context())
	return ok
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimPrefix(h, "Bearer ")
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
