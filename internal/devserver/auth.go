package devserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/campe111/turnero/internal/models"
)

type authContextKey struct{}

// requireUser rejects requests without a valid bearer token and stores
// the resolved user in the request context.
func (h *Handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "missing token")
			return
		}
		claims, err := h.tokens.Parse(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}
		user, err := h.store.GetUser(claims.UserID)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "unknown user")
			return
		}
		ctx := context.WithValue(r.Context(), authContextKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return h.requireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userFromContext(r.Context())
		if !user.IsAdmin {
			writeError(w, r, http.StatusForbidden, "access_denied", "Acceso denegado")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func userFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(authContextKey{}).(models.User)
	return user, ok
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}
