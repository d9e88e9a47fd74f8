package token

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kjstillabower/weatherkit-gateway/internal/observability"
)

// TTL is the lifetime of every minted token (exp - iat).
const TTL = 600 * time.Second

const defaultReuseMargin = 60 * time.Second

// Option configures a Signer.
type Option func(*Signer)

// WithClock overrides the time source used for iat/exp.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithReuse hands out the last minted token until margin before its expiry.
// A margin outside (0, TTL) falls back to one minute.
func WithReuse(margin time.Duration) Option {
	return func(s *Signer) {
		if margin <= 0 || margin >= TTL {
			margin = defaultReuseMargin
		}
		s.reuse = true
		s.margin = margin
	}
}

// Signer mints ES256 bearer tokens for WeatherKit requests.
// Without WithReuse every call to Token signs a new token.
type Signer struct {
	creds  Credentials
	now    func() time.Time
	reuse  bool
	margin time.Duration

	mu        sync.Mutex
	cached    string
	cachedExp time.Time
}

// NewSigner validates creds and returns a Signer.
func NewSigner(creds Credentials, opts ...Option) (*Signer, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	s := &Signer{
		creds: creds,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Token returns a compact signed token for one outbound request.
func (s *Signer) Token() (string, error) {
	if !s.reuse {
		signed, _, err := s.mint(s.now())
		return signed, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if s.cached != "" && now.Before(s.cachedExp.Add(-s.margin)) {
		observability.TokensSignedTotal.WithLabelValues("reused").Inc()
		return s.cached, nil
	}
	signed, exp, err := s.mint(now)
	if err != nil {
		return "", err
	}
	s.cached, s.cachedExp = signed, exp
	return signed, nil
}

// mint signs header {alg, kid, id} and claims {iss, sub, iat, exp}. iat is
// truncated to whole seconds so exp - iat is exactly TTL.
func (s *Signer) mint(now time.Time) (string, time.Time, error) {
	issuedAt := time.Unix(now.Unix(), 0)
	expiresAt := issuedAt.Add(TTL)

	t := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.RegisteredClaims{
		Issuer:    s.creds.TeamID,
		Subject:   s.creds.ServiceID,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	t.Header["kid"] = s.creds.KeyID
	t.Header["id"] = s.creds.ServiceIdentifier()

	signed, err := t.SignedString(s.creds.PrivateKey)
	if err != nil {
		observability.TokensSignedTotal.WithLabelValues("error").Inc()
		return "", time.Time{}, fmt.Errorf("%w: sign token: %v", ErrInvalidCredential, err)
	}
	observability.TokensSignedTotal.WithLabelValues("signed").Inc()
	return signed, expiresAt, nil
}
