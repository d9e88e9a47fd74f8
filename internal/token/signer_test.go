package token_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kjstillabower/weatherkit-gateway/internal/testhelpers"
	"github.com/kjstillabower/weatherkit-gateway/internal/token"
)

// parseToken verifies the signature with pub and returns header and claims.
// Claim validation is skipped so fixed clocks in the past still parse.
func parseToken(t *testing.T, raw string, pub *ecdsa.PublicKey) (map[string]interface{}, *jwt.RegisteredClaims) {
	t.Helper()
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return pub, nil
	}, jwt.WithValidMethods([]string{"ES256"}), jwt.WithoutClaimsValidation())
	if err != nil {
		t.Fatalf("ParseWithClaims() error = %v", err)
	}
	return parsed.Header, claims
}

// TestSigner_Token_HeaderAndClaims verifies the header carries alg, kid and
// the team.service identifier, and that exp is exactly iat + 600 seconds.
func TestSigner_Token_HeaderAndClaims(t *testing.T) {
	key, pemBytes := testhelpers.GenerateKeyPEM(t, elliptic.P256())
	creds, err := token.ParseCredentials(testhelpers.TeamID, testhelpers.ServiceID, testhelpers.KeyID, pemBytes)
	if err != nil {
		t.Fatalf("ParseCredentials() error = %v", err)
	}
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 750_000_000, time.UTC)
	signer, err := token.NewSigner(creds, token.WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}

	raw, err := signer.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	header, claims := parseToken(t, raw, &key.PublicKey)

	if header["alg"] != "ES256" {
		t.Errorf("header alg = %v, want ES256", header["alg"])
	}
	if header["kid"] != testhelpers.KeyID {
		t.Errorf("header kid = %v, want %s", header["kid"], testhelpers.KeyID)
	}
	wantID := testhelpers.TeamID + "." + testhelpers.ServiceID
	if header["id"] != wantID {
		t.Errorf("header id = %v, want %s", header["id"], wantID)
	}
	if claims.Issuer != testhelpers.TeamID {
		t.Errorf("iss = %q, want %q", claims.Issuer, testhelpers.TeamID)
	}
	if claims.Subject != testhelpers.ServiceID {
		t.Errorf("sub = %q, want %q", claims.Subject, testhelpers.ServiceID)
	}
	if got := claims.IssuedAt.Unix(); got != fixed.Unix() {
		t.Errorf("iat = %d, want %d", got, fixed.Unix())
	}
	if got := claims.ExpiresAt.Unix() - claims.IssuedAt.Unix(); got != 600 {
		t.Errorf("exp - iat = %d, want 600", got)
	}
}

// TestSigner_Token_FreshPerCall verifies that without reuse every call signs
// a new token.
func TestSigner_Token_FreshPerCall(t *testing.T) {
	signer := testhelpers.NewSigner(t)
	first, err := signer.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	second, err := signer.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	// ECDSA signatures are randomized, so identical claims still differ.
	if first == second {
		t.Error("Token() returned the same token twice without reuse")
	}
}

// TestSigner_Token_Reuse verifies that WithReuse hands out the cached token
// until the margin before expiry, then mints a new one.
func TestSigner_Token_Reuse(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	signer, err := token.NewSigner(testhelpers.NewCredentials(t),
		token.WithClock(func() time.Time { return now }),
		token.WithReuse(time.Minute),
	)
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}

	first, _ := signer.Token()
	now = now.Add(8 * time.Minute)
	second, _ := signer.Token()
	if first != second {
		t.Error("Token() minted a new token inside the reuse window")
	}

	now = now.Add(90 * time.Second) // 9m30s after iat, inside the 1m margin
	third, _ := signer.Token()
	if third == first {
		t.Error("Token() reused a token inside the expiry margin")
	}
}

// TestParseCredentials_Invalid verifies that malformed or unsuitable key
// material and missing identifiers fail with ErrInvalidCredential.
func TestParseCredentials_Invalid(t *testing.T) {
	_, p384 := testhelpers.GenerateKeyPEM(t, elliptic.P384())
	_, p256 := testhelpers.GenerateKeyPEM(t, elliptic.P256())

	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey() error = %v", err)
	}
	rsaDER, err := x509.MarshalPKCS8PrivateKey(rsaKey)
	if err != nil {
		t.Fatalf("MarshalPKCS8PrivateKey() error = %v", err)
	}
	rsaPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: rsaDER})

	tests := []struct {
		name      string
		teamID    string
		serviceID string
		keyID     string
		pem       []byte
	}{
		{"empty key", "T", "S", "K", nil},
		{"not PEM", "T", "S", "K", []byte("definitely not a key")},
		{"RSA key", "T", "S", "K", rsaPEM},
		{"P-384 key", "T", "S", "K", p384},
		{"missing team id", "", "S", "K", p256},
		{"missing service id", "T", " ", "K", p256},
		{"missing key id", "T", "S", "", p256},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := token.ParseCredentials(tt.teamID, tt.serviceID, tt.keyID, tt.pem)
			if !errors.Is(err, token.ErrInvalidCredential) {
				t.Errorf("ParseCredentials() error = %v, want ErrInvalidCredential", err)
			}
		})
	}
}

// TestParseCredentials_SEC1 verifies that "EC PRIVATE KEY" PEM blocks parse.
func TestParseCredentials_SEC1(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey() error = %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})

	creds, err := token.ParseCredentials(" TEAM ", "svc", "kid", pemBytes)
	if err != nil {
		t.Fatalf("ParseCredentials() error = %v", err)
	}
	if creds.TeamID != "TEAM" {
		t.Errorf("TeamID = %q, want trimmed TEAM", creds.TeamID)
	}
	if creds.ServiceIdentifier() != "TEAM.svc" {
		t.Errorf("ServiceIdentifier() = %q, want TEAM.svc", creds.ServiceIdentifier())
	}
}

// TestNewSigner_RejectsInvalidCredentials verifies that a zero Credentials value
// is rejected before any signing is attempted.
func TestNewSigner_RejectsInvalidCredentials(t *testing.T) {
	signer, err := token.NewSigner(token.Credentials{})
	if !errors.Is(err, token.ErrInvalidCredential) {
		t.Errorf("NewSigner() error = %v, want ErrInvalidCredential", err)
	}
	if signer != nil {
		t.Error("NewSigner() expected nil signer on error")
	}
}
