package token

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidCredential is returned when key material or identifiers cannot be used
// to sign a WeatherKit token. It is raised before any network call.
var ErrInvalidCredential = errors.New("invalid credential")

// Credentials identify a WeatherKit service and hold the key used to sign its tokens.
// Values are immutable once parsed; share them freely between goroutines.
type Credentials struct {
	TeamID     string
	ServiceID  string
	KeyID      string
	PrivateKey *ecdsa.PrivateKey
}

// ParseCredentials trims the identifiers and parses a PEM encoded EC private key
// (PKCS#8 as downloaded from the developer portal, or SEC1).
func ParseCredentials(teamID, serviceID, keyID string, pemBytes []byte) (Credentials, error) {
	if len(strings.TrimSpace(string(pemBytes))) == 0 {
		return Credentials{}, fmt.Errorf("%w: private key is required", ErrInvalidCredential)
	}
	key, err := jwt.ParseECPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: parse private key: %v", ErrInvalidCredential, err)
	}
	creds := Credentials{
		TeamID:     strings.TrimSpace(teamID),
		ServiceID:  strings.TrimSpace(serviceID),
		KeyID:      strings.TrimSpace(keyID),
		PrivateKey: key,
	}
	if err := creds.Validate(); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// Validate reports whether every identifier is set and the key is a P-256 ECDSA key.
func (c Credentials) Validate() error {
	switch {
	case c.TeamID == "":
		return fmt.Errorf("%w: team id is required", ErrInvalidCredential)
	case c.ServiceID == "":
		return fmt.Errorf("%w: service id is required", ErrInvalidCredential)
	case c.KeyID == "":
		return fmt.Errorf("%w: key id is required", ErrInvalidCredential)
	case c.PrivateKey == nil:
		return fmt.Errorf("%w: private key is required", ErrInvalidCredential)
	}
	if name := c.PrivateKey.Curve.Params().Name; name != "P-256" {
		return fmt.Errorf("%w: private key curve %s, want P-256", ErrInvalidCredential, name)
	}
	return nil
}

// ServiceIdentifier returns the "{team}.{service}" value carried in the token header.
func (c Credentials) ServiceIdentifier() string {
	return c.TeamID + "." + c.ServiceID
}
