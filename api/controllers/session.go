package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/creditmeter-backend/api/responses"
	pkgAuth "github.com/angelmondragon/creditmeter-backend/pkg/auth"
	"github.com/angelmondragon/creditmeter-backend/pkg/config"
	"github.com/angelmondragon/creditmeter-backend/pkg/errors"
	"github.com/angelmondragon/creditmeter-backend/pkg/logger"
)

type sessionResponse struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	TokenID   string    `json:"token_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func parseBearerToken(r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return "", errors.New(errors.CodeUnauthorized, "missing credentials")
	}
	token := raw
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return "", errors.New(errors.CodeUnauthorized, "missing credentials")
	}
	return token, nil
}

// AuthSession introspects the presented access token.
func AuthSession(cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := parseBearerToken(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		claims, err := pkgAuth.ParseAccessToken(cfg, token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, errors.Wrap(errors.CodeUnauthorized, err, "invalid token"))
			return
		}

		resp := sessionResponse{
			UserID:  claims.UserID.String(),
			Email:   claims.Email,
			TokenID: claims.ID,
		}
		if claims.IssuedAt != nil {
			resp.IssuedAt = claims.IssuedAt.UTC()
		}
		if claims.ExpiresAt != nil {
			resp.ExpiresAt = claims.ExpiresAt.UTC()
		}
		responses.WriteSuccess(w, resp)
	}
}
