//go:build ignore

// Generates an ES256 key pair for local development and signs a token the
// API accepts when AUTH_PUBLIC_KEY is set to the printed public key.
//
//	go run scripts/generate-jwt-keys.go -ident Z990001 -org-unit 4817
package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func main() {
	ident := flag.String("ident", "Z990001", "Caseworker ident placed in the NAVident claim")
	orgUnit := flag.String("org-unit", "4817", "Organizational unit placed in the enhet claim")
	audience := flag.String("audience", "vedtak", "Token audience")
	issuer := flag.String("issuer", "", "Token issuer (optional)")
	ttl := flag.Duration("ttl", 8*time.Hour, "Token lifetime")
	out := flag.String("out", "jwt-private-key.pem", "File the private key is written to")
	flag.Parse()

	// Generate ECDSA P-256 key pair
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		fail("Failed to generate key", err)
	}

	privateKeyBytes, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		fail("Failed to marshal private key", err)
	}
	privateKeyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privateKeyBytes})

	publicKeyBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		fail("Failed to marshal public key", err)
	}
	publicKeyPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicKeyBytes})

	if err := os.WriteFile(*out, privateKeyPEM, 0600); err != nil {
		fail("Failed to write private key file", err)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"NAVident": *ident,
		"enhet":    *orgUnit,
		"aud":      *audience,
		"iat":      now.Unix(),
		"exp":      now.Add(*ttl).Unix(),
	}
	if *issuer != "" {
		claims["iss"] = *issuer
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(privateKey)
	if err != nil {
		fail("Failed to sign token", err)
	}

	fmt.Println("Generated ECDSA P-256 key pair for JWT verification.")
	fmt.Printf("Private key saved to: %s\n", *out)
	fmt.Println("\nAdd this to your .env file (as a single line with \\n for newlines):")
	fmt.Println("----------------------------------------")
	fmt.Printf("AUTH_PUBLIC_KEY=%s\n", strings.ReplaceAll(string(publicKeyPEM), "\n", "\\n"))
	fmt.Println("\nDevelopment token:")
	fmt.Println("----------------------------------------")
	fmt.Printf("Authorization: Bearer %s\n", token)
}

func fail(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
