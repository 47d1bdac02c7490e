package auth

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"time"
	"vedtak/internal/config"
	"vedtak/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token has expired")
	ErrMissingIdent   = errors.New("token carries no caseworker ident")
	ErrMissingOrgUnit = errors.New("token carries no org unit")
)

// Verifier validates ES256 tokens issued by the identity provider and turns
// them into the acting caseworker
type Verifier struct {
	publicKey     *ecdsa.PublicKey
	issuer        string
	audience      string
	identClaim    string
	orgUnitClaim  string
	serviceTokens bool
	now           func() time.Time
}

// NewVerifier creates a verifier from the PEM encoded public key in cfg
func NewVerifier(cfg *config.AuthConfig) (*Verifier, error) {
	// .env files carry the PEM on one line with escaped newlines
	pemKey := strings.ReplaceAll(cfg.PublicKeyPEM, `\n`, "\n")
	key, err := jwt.ParseECPublicKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token verification key: %w", err)
	}
	identClaim := cfg.IdentClaim
	if identClaim == "" {
		identClaim = "NAVident"
	}
	orgUnitClaim := cfg.OrgUnitClaim
	if orgUnitClaim == "" {
		orgUnitClaim = "enhet"
	}
	return &Verifier{
		publicKey:     key,
		issuer:        cfg.Issuer,
		audience:      cfg.Audience,
		identClaim:    identClaim,
		orgUnitClaim:  orgUnitClaim,
		serviceTokens: cfg.ServiceTokens,
		now:           time.Now,
	}, nil
}

// Verify validates the token and returns the actor it identifies
func (v *Verifier) Verify(tokenString string) (models.Actor, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.publicKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Actor{}, ErrExpiredToken
		}
		return models.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return models.Actor{}, ErrInvalidToken
	}

	ident := stringClaim(claims, v.identClaim)
	if ident == "" {
		return models.Actor{}, ErrMissingIdent
	}
	orgUnit := stringClaim(claims, v.orgUnitClaim)
	if orgUnit == "" && !v.serviceTokens {
		return models.Actor{}, ErrMissingOrgUnit
	}
	return models.Actor{Ident: ident, OrgUnit: orgUnit}, nil
}

// stringClaim reads a string claim. A list claim yields its first entry.
func stringClaim(claims jwt.MapClaims, name string) string {
	switch v := claims[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case []interface{}:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
