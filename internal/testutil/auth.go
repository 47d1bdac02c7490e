package testutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"vedtak/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TestIssuer   = "https://login.test/vedtak"
	TestAudience = "vedtak"
)

// TokenIssuer signs ES256 tokens the way the identity provider does
type TokenIssuer struct {
	key *ecdsa.PrivateKey
}

// NewTokenIssuer generates a fresh P-256 key pair
func NewTokenIssuer(t *testing.T) *TokenIssuer {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate ECDSA key: %v", err)
	}
	return &TokenIssuer{key: key}
}

// PublicKeyPEM returns the verification key in PKIX PEM form
func (i *TokenIssuer) PublicKeyPEM(t *testing.T) string {
	t.Helper()

	der, err := x509.MarshalPKIXPublicKey(&i.key.PublicKey)
	if err != nil {
		t.Fatalf("Failed to marshal public key: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

// Sign signs arbitrary claims
func (i *TokenIssuer) Sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(i.key)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return token
}

// Claims returns valid claims for actor, expiring in an hour
func (i *TokenIssuer) Claims(actor models.Actor) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":      TestIssuer,
		"aud":      TestAudience,
		"NAVident": actor.Ident,
		"enhet":    actor.OrgUnit,
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"exp":      now.Add(time.Hour).Unix(),
	}
}

// Token returns a valid token for actor
func (i *TokenIssuer) Token(t *testing.T, actor models.Actor) string {
	t.Helper()
	return i.Sign(t, i.Claims(actor))
}

// AuthenticatedRequest creates a request carrying a bearer token for actor
func (i *TokenIssuer) AuthenticatedRequest(t *testing.T, method, url string, body io.Reader, actor models.Actor) *http.Request {
	t.Helper()

	req := httptest.NewRequest(method, url, body)
	req.Header.Set("Authorization", "Bearer "+i.Token(t, actor))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// TestResponse holds response data for assertions
type TestResponse struct {
	*httptest.ResponseRecorder
}

// NewTestResponse creates a new test response recorder
func NewTestResponse() *TestResponse {
	return &TestResponse{
		ResponseRecorder: httptest.NewRecorder(),
	}
}

// AssertStatus asserts the HTTP status code
func (r *TestResponse) AssertStatus(t *testing.T, expected int) {
	t.Helper()

	if r.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, r.Code, r.Body.String())
	}
}

// AssertStatusOK asserts 200 OK
func (r *TestResponse) AssertStatusOK(t *testing.T) {
	r.AssertStatus(t, http.StatusOK)
}

// AssertStatusUnauthorized asserts 401 Unauthorized
func (r *TestResponse) AssertStatusUnauthorized(t *testing.T) {
	r.AssertStatus(t, http.StatusUnauthorized)
}

// AssertStatusNotFound asserts 404 Not Found
func (r *TestResponse) AssertStatusNotFound(t *testing.T) {
	r.AssertStatus(t, http.StatusNotFound)
}

// AssertStatusBadRequest asserts 400 Bad Request
func (r *TestResponse) AssertStatusBadRequest(t *testing.T) {
	r.AssertStatus(t, http.StatusBadRequest)
}
