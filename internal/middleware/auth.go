package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"vedtak/internal/auth"
	"vedtak/internal/models"
)

// Headers carrying the actor when token verification is disabled (local development only)
const (
	HeaderActorIdent   = "X-Actor-Ident"
	HeaderActorOrgUnit = "X-Actor-Org-Unit"
)

type actorKey struct{}

// TokenVerifier turns a bearer token into the acting caseworker
type TokenVerifier interface {
	Verify(token string) (models.Actor, error)
}

// AuthMiddleware puts the authenticated actor on the request context
type AuthMiddleware struct {
	verifier TokenVerifier
	enabled  bool
}

// NewAuthMiddleware creates a new auth middleware. With enabled false the
// actor is read from the X-Actor-* headers instead of a token.
func NewAuthMiddleware(verifier TokenVerifier, enabled bool) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		enabled:  enabled,
	}
}

// Authenticate validates the bearer token and adds the actor to the context
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled {
			actor := models.Actor{
				Ident:   strings.TrimSpace(r.Header.Get(HeaderActorIdent)),
				OrgUnit: strings.TrimSpace(r.Header.Get(HeaderActorOrgUnit)),
			}
			if actor.Ident == "" {
				respondWithError(w, http.StatusUnauthorized, "Missing "+HeaderActorIdent+" header")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondWithError(w, http.StatusUnauthorized, "Missing authorization header")
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			respondWithError(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		actor, err := m.verifier.Verify(token)
		if err != nil {
			slog.Warn("Token rejected", "path", r.URL.Path, "error", err)
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				respondWithError(w, http.StatusUnauthorized, "Token has expired")
			case errors.Is(err, auth.ErrMissingOrgUnit), errors.Is(err, auth.ErrMissingIdent):
				respondWithError(w, http.StatusForbidden, err.Error())
			default:
				respondWithError(w, http.StatusUnauthorized, "Invalid token")
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// WithActor stores the actor on ctx
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom retrieves the actor from the request context
func ActorFrom(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(models.Actor)
	return actor, ok
}

type errorBody struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(errorBody{Code: http.StatusText(code), Detail: message}); err != nil {
		slog.Error("Failed to write error response", "error", err)
	}
}
