package controllers

import (
	"net/http"
	"time"

	"github.com/angelmondragon/scoopshop-backend/api/responses"
	pkgAuth "github.com/angelmondragon/scoopshop-backend/pkg/auth"
	"github.com/angelmondragon/scoopshop-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/scoopshop-backend/pkg/errors"
	"github.com/angelmondragon/scoopshop-backend/pkg/logger"
)

type sessionResponse struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionCreate mints a token for a fresh anonymous cart session.
func SessionCreate(cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := pkgAuth.MintSessionToken(cfg, time.Now(), "")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint session token"))
			return
		}

		resp := sessionResponse{Token: token, SessionID: claims.SessionID}
		if claims.ExpiresAt != nil {
			resp.ExpiresAt = claims.ExpiresAt.Time.UTC()
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}
