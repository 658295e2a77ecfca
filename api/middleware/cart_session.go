package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/scoopshop-backend/api/responses"
	pkgAuth "github.com/angelmondragon/scoopshop-backend/pkg/auth"
	"github.com/angelmondragon/scoopshop-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/scoopshop-backend/pkg/errors"
	"github.com/angelmondragon/scoopshop-backend/pkg/logger"
)

const (
	sessionHeader     = "X-Cart-Session"
	sessionQueryParam = "session_token"
)

// CartSession resolves the cart session from a bearer token or the
// X-Cart-Session header and seeds the request context with it.
func CartSession(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing cart session"))
				return
			}

			claims, err := pkgAuth.ParseSessionToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid cart session"))
				return
			}

			ctx := WithSessionID(r.Context(), claims.SessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, claims.SessionID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		if token := strings.TrimSpace(raw[7:]); token != "" {
			return token
		}
	}
	if token := strings.TrimSpace(r.Header.Get(sessionHeader)); token != "" {
		return token
	}
	// EventSource cannot set headers, so streams may pass the token in the query.
	if r.Method == http.MethodGet {
		return strings.TrimSpace(r.URL.Query().Get(sessionQueryParam))
	}
	return ""
}
