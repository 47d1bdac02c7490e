package auth

import (
	"errors"
	"testing"
	"time"
	"vedtak/internal/config"
	"vedtak/internal/models"
	"vedtak/internal/testutil"

	"github.com/golang-jwt/jwt/v5"
)

var caseworker = models.Actor{Ident: "S123456", OrgUnit: "4808"}

func newVerifier(t *testing.T, issuer *testutil.TokenIssuer, serviceTokens bool) *Verifier {
	t.Helper()

	v, err := NewVerifier(&config.AuthConfig{
		Enabled:       true,
		PublicKeyPEM:  issuer.PublicKeyPEM(t),
		Issuer:        testutil.TestIssuer,
		Audience:      testutil.TestAudience,
		ServiceTokens: serviceTokens,
	})
	if err != nil {
		t.Fatalf("Failed to create verifier: %v", err)
	}
	return v
}

func TestVerify(t *testing.T) {
	issuer := testutil.NewTokenIssuer(t)
	v := newVerifier(t, issuer, false)

	actor, err := v.Verify(issuer.Token(t, caseworker))
	if err != nil {
		t.Fatalf("Failed to verify token: %v", err)
	}
	if actor != caseworker {
		t.Errorf("Expected %+v, got %+v", caseworker, actor)
	}
}

func TestVerify_Rejections(t *testing.T) {
	issuer := testutil.NewTokenIssuer(t)
	other := testutil.NewTokenIssuer(t)
	v := newVerifier(t, issuer, false)

	tests := []struct {
		name   string
		token  func() string
		wantIs error
	}{
		{
			name: "expired",
			token: func() string {
				claims := issuer.Claims(caseworker)
				claims["exp"] = time.Now().Add(-time.Minute).Unix()
				return issuer.Sign(t, claims)
			},
			wantIs: ErrExpiredToken,
		},
		{
			name: "no expiry",
			token: func() string {
				claims := issuer.Claims(caseworker)
				delete(claims, "exp")
				return issuer.Sign(t, claims)
			},
			wantIs: ErrInvalidToken,
		},
		{
			name:   "foreign key",
			token:  func() string { return other.Token(t, caseworker) },
			wantIs: ErrInvalidToken,
		},
		{
			name: "wrong issuer",
			token: func() string {
				claims := issuer.Claims(caseworker)
				claims["iss"] = "https://elsewhere"
				return issuer.Sign(t, claims)
			},
			wantIs: ErrInvalidToken,
		},
		{
			name: "wrong audience",
			token: func() string {
				claims := issuer.Claims(caseworker)
				claims["aud"] = "payroll"
				return issuer.Sign(t, claims)
			},
			wantIs: ErrInvalidToken,
		},
		{
			name: "symmetric algorithm",
			token: func() string {
				token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, issuer.Claims(caseworker)).SignedString([]byte("secret"))
				return token
			},
			wantIs: ErrInvalidToken,
		},
		{
			name:   "no ident",
			token:  func() string { return issuer.Token(t, models.Actor{OrgUnit: "4808"}) },
			wantIs: ErrMissingIdent,
		},
		{
			name:   "no org unit",
			token:  func() string { return issuer.Token(t, models.Actor{Ident: "S123456"}) },
			wantIs: ErrMissingOrgUnit,
		},
		{
			name:   "garbage",
			token:  func() string { return "not.a.token" },
			wantIs: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token())
			if !errors.Is(err, tt.wantIs) {
				t.Errorf("Expected %v, got %v", tt.wantIs, err)
			}
		})
	}
}

func TestVerify_ServiceTokens(t *testing.T) {
	issuer := testutil.NewTokenIssuer(t)
	v := newVerifier(t, issuer, true)

	actor, err := v.Verify(issuer.Token(t, models.Actor{Ident: "VEDTAK_BATCH"}))
	if err != nil {
		t.Fatalf("Service token should be accepted: %v", err)
	}
	if actor.Ident != "VEDTAK_BATCH" || actor.OrgUnit != "" {
		t.Errorf("Unexpected actor %+v", actor)
	}
}

func TestVerify_ListClaim(t *testing.T) {
	issuer := testutil.NewTokenIssuer(t)
	v := newVerifier(t, issuer, false)

	claims := issuer.Claims(caseworker)
	claims["enhet"] = []string{"4817", "4808"}

	actor, err := v.Verify(issuer.Sign(t, claims))
	if err != nil {
		t.Fatalf("Failed to verify token: %v", err)
	}
	if actor.OrgUnit != "4817" {
		t.Errorf("Expected first org unit, got %q", actor.OrgUnit)
	}
}

func TestNewVerifier_InvalidKey(t *testing.T) {
	_, err := NewVerifier(&config.AuthConfig{PublicKeyPEM: "not a key"})
	if err == nil {
		t.Error("Expected an error for an invalid key")
	}
}
