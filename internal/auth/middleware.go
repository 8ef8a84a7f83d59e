package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
	"github.com/odyssey-crm/odyssey-crm/internal/shared"
)

// Authenticator attaches the current principal to the request context. It
// never rejects a request itself; route guards decide what anonymous callers
// may reach.
type Authenticator struct {
	Service *Service
	Tokens  *TokenIssuer
	Logger  *slog.Logger
}

// BearerToken returns the token from an Authorization: Bearer header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

// Middleware resolves the user from a bearer token or the session cookie.
func (a Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := a.userID(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		p, err := a.Service.Principal(r.Context(), userID)
		if err != nil {
			if a.Logger != nil {
				a.Logger.Error("load principal", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		if p == nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(rbac.ContextWithPrincipal(r.Context(), *p)))
	})
}

func (a Authenticator) userID(r *http.Request) (uuid.UUID, bool) {
	if raw, ok := BearerToken(r); ok {
		if a.Tokens == nil {
			return uuid.Nil, false
		}
		id, err := a.Tokens.Parse(raw)
		if err != nil {
			return uuid.Nil, false
		}
		return id, true
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(sess.User())
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
