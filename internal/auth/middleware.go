package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/loop-dev/loop-battle/internal/auth/jwt"
	"github.com/loop-dev/loop-battle/internal/battle"
	"github.com/loop-dev/loop-battle/internal/logging"
	httperrors "github.com/loop-dev/loop-battle/pkg/http/errors"
)

type contextKey struct{}

// TokenValidator is the part of jwt.Manager the middleware needs.
type TokenValidator interface {
	ValidateAccessToken(token string) (*jwt.Claims, error)
}

// PlayerFromClaims converts token claims into the participant identity used by rooms.
// An unknown grade label is dropped rather than rejected.
func PlayerFromClaims(c *jwt.Claims) battle.Player {
	grade, err := battle.ParseGrade(c.Grade)
	if err != nil {
		grade = ""
	}
	return battle.Player{ID: c.UserID, Nickname: c.Nickname, Grade: grade}
}

// WithPlayer stores the authenticated player in the context.
func WithPlayer(ctx context.Context, p battle.Player) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// PlayerFromContext returns the authenticated player, if any.
func PlayerFromContext(ctx context.Context) (battle.Player, bool) {
	p, ok := ctx.Value(contextKey{}).(battle.Player)
	return p, ok
}

// AuthMiddleware validates bearer tokens and injects the player into the request context.
// Requests without an Authorization header pass through anonymously.
func AuthMiddleware(tokens TokenValidator, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			// Parse "Bearer <token>"
			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid authorization header")
				return
			}

			claims, err := tokens.ValidateAccessToken(token)
			if err != nil {
				logger.Warn().Err(err).Msg("token validation failed")
				code := httperrors.ErrCodeInvalidToken
				if errors.Is(err, jwt.ErrExpiredToken) {
					code = httperrors.ErrCodeTokenExpired
				}
				httperrors.RespondUnauthorized(w, code, "Invalid or expired token")
				return
			}

			player := PlayerFromClaims(claims)
			ctx := WithPlayer(r.Context(), player)
			reqLogger := logging.FromContext(ctx).With().Str("player_id", player.ID.String()).Logger()
			ctx = logging.IntoContext(ctx, reqLogger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth ensures the request is authenticated.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PlayerFromContext(r.Context()); !ok {
			httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
