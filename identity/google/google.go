// Package google verifies Google Sign-In ID tokens.
//
// Tokens are RS256 JWTs signed with one of the keys published at CertsURL.
// A token is accepted only when its audience is the configured OAuth
// client ID, its issuer is Google and its email is verified.
package google

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CertsURL is Google's JWKS endpoint for ID token signing keys.
const CertsURL = "https://www.googleapis.com/oauth2/v3/certs"

var issuers = []string{"accounts.google.com", "https://accounts.google.com"}

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("google: invalid id token")

// Claims is the subset of the ID token payload mockprep reads.
type Claims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// KeySource resolves a signing key by key ID.
type KeySource interface {
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// Verifier checks ID tokens for one OAuth client.
type Verifier struct {
	clientID string
	keys     KeySource
	now      func() time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithKeySource replaces the default JWKS key source.
func WithKeySource(ks KeySource) Option {
	return func(v *Verifier) { v.keys = ks }
}

// WithHTTPClient sets the client used to fetch Google's keys.
func WithHTTPClient(c *http.Client) Option {
	return func(v *Verifier) { v.keys = NewJWKS(CertsURL, c) }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// New returns a Verifier for clientID.
func New(clientID string, opts ...Option) *Verifier {
	v := &Verifier{
		clientID: clientID,
		keys:     NewJWKS(CertsURL, nil),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ClientID returns the OAuth client ID tokens must be issued for.
func (v *Verifier) ClientID() string { return v.clientID }

// Verify checks raw and returns its claims.
func (v *Verifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid header")
		}
		return v.keys.Key(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.clientID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if !validIssuer(claims.Issuer) {
		return nil, fmt.Errorf("%w: issuer %q", ErrInvalidToken, claims.Issuer)
	}
	if claims.Email == "" || !claims.EmailVerified {
		return nil, fmt.Errorf("%w: email not verified", ErrInvalidToken)
	}
	return claims, nil
}

func validIssuer(iss string) bool {
	for _, want := range issuers {
		if iss == want {
			return true
		}
	}
	return false
}
