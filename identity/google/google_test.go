package google

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testClientID = "123.apps.googleusercontent.com"

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type staticKeys map[string]*rsa.PublicKey

func (s staticKeys) Key(_ context.Context, kid string) (*rsa.PublicKey, error) {
	k, ok := s[kid]
	if !ok {
		return nil, fmt.Errorf("unknown key %q", kid)
	}
	return k, nil
}

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func sign(t *testing.T, key *rsa.PrivateKey, kid string, mutate func(*Claims)) string {
	t.Helper()
	claims := &Claims{
		Email:         "ada@example.com",
		EmailVerified: true,
		Name:          "Ada Lovelace",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://accounts.google.com",
			Subject:   "1098765",
			Audience:  jwt.ClaimStrings{testClientID},
			IssuedAt:  jwt.NewNumericDate(testNow.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
		},
	}
	if mutate != nil {
		mutate(claims)
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	raw, err := tok.SignedString(key)
	require.NoError(t, err)
	return raw
}

func TestVerify(t *testing.T) {
	key := newKey(t)
	other := newKey(t)
	v := New(testClientID,
		WithKeySource(staticKeys{"k1": &key.PublicKey}),
		WithClock(func() time.Time { return testNow }),
	)

	claims, err := v.Verify(context.Background(), sign(t, key, "k1", nil))
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", claims.Email)
	require.Equal(t, "Ada Lovelace", claims.Name)
	require.Equal(t, "1098765", claims.Subject)

	_, err = v.Verify(context.Background(), sign(t, key, "k1", func(c *Claims) { c.Issuer = "accounts.google.com" }))
	require.NoError(t, err, "bare issuer form is accepted")

	tests := []struct {
		name string
		raw  string
	}{
		{"wrong audience", sign(t, key, "k1", func(c *Claims) { c.Audience = jwt.ClaimStrings{"someone-else"} })},
		{"wrong issuer", sign(t, key, "k1", func(c *Claims) { c.Issuer = "https://evil.example" })},
		{"expired", sign(t, key, "k1", func(c *Claims) { c.ExpiresAt = jwt.NewNumericDate(testNow.Add(-time.Second)) })},
		{"unverified email", sign(t, key, "k1", func(c *Claims) { c.EmailVerified = false })},
		{"foreign signature", sign(t, other, "k1", nil)},
		{"unknown kid", sign(t, key, "k2", nil)},
		{"garbage", "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.raw)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerifyRejectsHMAC(t *testing.T) {
	key := newKey(t)
	v := New(testClientID,
		WithKeySource(staticKeys{"k1": &key.PublicKey}),
		WithClock(func() time.Time { return testNow }),
	)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "https://accounts.google.com",
		Audience:  jwt.ClaimStrings{testClientID},
		ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
	})
	tok.Header["kid"] = "k1"
	raw, err := tok.SignedString([]byte("shared"))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), raw)
	require.True(t, errors.Is(err, ErrInvalidToken))
}

type keySet struct {
	mu   sync.Mutex
	keys map[string]*rsa.PublicKey
}

func (ks *keySet) add(kid string, k *rsa.PublicKey) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.keys[kid] = k
}

func jwksHandler(published *keySet, hits *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		published.mu.Lock()
		defer published.mu.Unlock()
		type jwk struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			Alg string `json:"alg"`
			N   string `json:"n"`
			E   string `json:"e"`
		}
		var set struct {
			Keys []jwk `json:"keys"`
		}
		for kid, k := range published.keys {
			set.Keys = append(set.Keys, jwk{
				Kid: kid,
				Kty: "RSA",
				Alg: "RS256",
				N:   base64.RawURLEncoding.EncodeToString(k.N.Bytes()),
				E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(k.E)).Bytes()),
			})
		}
		w.Header().Set("Cache-Control", "public, max-age=600, must-revalidate")
		_ = json.NewEncoder(w).Encode(set)
	}
}

func TestJWKSCachesAndRefreshes(t *testing.T) {
	key := newKey(t)
	rotated := newKey(t)
	published := &keySet{keys: map[string]*rsa.PublicKey{"k1": &key.PublicKey}}

	var hits atomic.Int32
	srv := httptest.NewServer(jwksHandler(published, &hits))
	defer srv.Close()

	now := testNow
	jwks := NewJWKS(srv.URL, srv.Client())
	jwks.now = func() time.Time { return now }

	got, err := jwks.Key(context.Background(), "k1")
	require.NoError(t, err)
	require.Equal(t, 0, got.N.Cmp(key.N))
	require.Equal(t, key.E, got.E)

	_, err = jwks.Key(context.Background(), "k1")
	require.NoError(t, err)
	require.Equal(t, int32(1), hits.Load(), "cached key should not refetch")

	now = now.Add(11 * time.Minute)
	_, err = jwks.Key(context.Background(), "k1")
	require.NoError(t, err)
	require.Equal(t, int32(2), hits.Load(), "expired cache should refetch")

	published.add("k2", &rotated.PublicKey)
	_, err = jwks.Key(context.Background(), "k2")
	require.NoError(t, err)
	require.Equal(t, int32(3), hits.Load(), "unknown kid should refetch")

	_, err = jwks.Key(context.Background(), "k9")
	require.Error(t, err)
}

func TestVerifyWithJWKS(t *testing.T) {
	key := newKey(t)
	var hits atomic.Int32
	srv := httptest.NewServer(jwksHandler(&keySet{keys: map[string]*rsa.PublicKey{"k1": &key.PublicKey}}, &hits))
	defer srv.Close()

	v := New(testClientID,
		WithKeySource(NewJWKS(srv.URL, srv.Client())),
		WithClock(func() time.Time { return testNow }),
	)
	claims, err := v.Verify(context.Background(), sign(t, key, "k1", nil))
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", claims.Email)
}

func TestMaxAge(t *testing.T) {
	require.Equal(t, 600*time.Second, maxAge("public, max-age=600, must-revalidate"))
	require.Equal(t, defaultKeyTTL, maxAge("no-store"))
	require.Equal(t, defaultKeyTTL, maxAge("max-age=oops"))
}
