package testhelpers

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/kjstillabower/weatherkit-gateway/internal/token"
)

// Test identifiers used across packages.
const (
	TeamID    = "TEAM123456"
	ServiceID = "com.example.weatherkit"
	KeyID     = "KEY7654321"
)

// GenerateKeyPEM returns a fresh key on curve and its PKCS#8 PEM encoding.
func GenerateKeyPEM(t testing.TB, curve elliptic.Curve) (*ecdsa.PrivateKey, []byte) {
	t.Helper()
	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalPKCS8PrivateKey() error = %v", err)
	}
	return key, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

// NewCredentials returns valid P-256 credentials using the test identifiers.
func NewCredentials(t testing.TB) token.Credentials {
	t.Helper()
	_, pemBytes := GenerateKeyPEM(t, elliptic.P256())
	creds, err := token.ParseCredentials(TeamID, ServiceID, KeyID, pemBytes)
	if err != nil {
		t.Fatalf("ParseCredentials() error = %v", err)
	}
	return creds
}

// NewSigner returns a Signer over fresh test credentials with a real clock.
func NewSigner(t testing.TB) *token.Signer {
	t.Helper()
	signer, err := token.NewSigner(NewCredentials(t), token.WithClock(time.Now))
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}
	return signer
}
