package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/AdamBeresnev/tourney/internal/config"
	"github.com/AdamBeresnev/tourney/internal/httputil"
	"github.com/AdamBeresnev/tourney/internal/service"
	users "github.com/AdamBeresnev/tourney/internal/user"
	"github.com/alexedwards/scs/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/markbates/goth"
	"github.com/markbates/goth/providers/discord"
	"github.com/markbates/goth/providers/google"
)

const SessionUserKey = "userID"

const jwtClaimUserID = "user_id"

// UserLoader resolves the user an identity points at.
type UserLoader interface {
	GetUser(ctx context.Context, id interface{}) (*users.User, error)
}

// InitAuth registers the OAuth providers that have credentials configured.
func InitAuth(cfg *config.Config) {
	var providers []goth.Provider
	if cfg.Discord.Key != "" {
		providers = append(providers, discord.New(cfg.Discord.Key, cfg.Discord.Secret, cfg.Discord.CallbackURL, discord.ScopeIdentify, discord.ScopeEmail))
	}
	if cfg.Google.Key != "" {
		providers = append(providers, google.New(cfg.Google.Key, cfg.Google.Secret, cfg.Google.CallbackURL, "email", "profile"))
	}
	if len(providers) == 0 {
		slog.Warn("No OAuth providers configured, only guest login is available")
		return
	}
	goth.UseProviders(providers...)
}

// IssueToken signs a bearer token for API clients that cannot hold a session cookie.
func IssueToken(secret string, user *users.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		jwtClaimUserID: user.ID.String(),
		"role":         string(user.Role),
		"name":         user.Username,
		"exp":          now.Add(ttl).Unix(),
		"iat":          now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func parseToken(secret, raw string) (uuid.UUID, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return uuid.Nil, errors.New("invalid token claims")
	}
	idStr, ok := claims[jwtClaimUserID].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("missing '%s' claim in token", jwtClaimUserID)
	}
	return uuid.Parse(idStr)
}

// LoadIdentity puts the request's user into the context. A bearer token wins
// over the session; an invalid token is rejected outright. The role always
// comes from the stored user, never from the token.
func LoadIdentity(sessionManager *scs.SessionManager, loader UserLoader, jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var userID uuid.UUID
			if auth := r.Header.Get("Authorization"); jwtSecret != "" && strings.HasPrefix(auth, "Bearer ") {
				id, err := parseToken(jwtSecret, strings.TrimPrefix(auth, "Bearer "))
				if err != nil {
					httputil.ServiceError(w, "Rejected bearer token", fmt.Errorf("%w: %v", service.ErrNotAuthenticated, err))
					return
				}
				userID = id
			} else if sessionManager != nil {
				if idStr := sessionManager.GetString(ctx, SessionUserKey); idStr != "" {
					id, err := uuid.Parse(idStr)
					if err != nil {
						sessionManager.Remove(ctx, SessionUserKey)
					} else {
						userID = id
					}
				}
			}

			if userID != uuid.Nil {
				user, err := loader.GetUser(ctx, userID)
				if err == nil {
					ctx = users.WithUser(ctx, user)
				} else {
					slog.Warn("Identity points at unknown user", "user_id", userID, "error", err)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if users.FromContext(r.Context()) == nil {
			httputil.ServiceError(w, "Unauthenticated request", service.ErrNotAuthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := users.FromContext(r.Context())
		if user == nil {
			httputil.ServiceError(w, "Unauthenticated request", service.ErrNotAuthenticated)
			return
		}
		if !user.IsAdmin() {
			httputil.ServiceError(w, "Admin route refused", service.ErrAdminRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}
