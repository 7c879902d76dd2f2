package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/xraph/mockprep"
	"github.com/xraph/mockprep/id"
	"github.com/xraph/mockprep/user"
)

const (
	tokenIssuer = "mockprep"
	userKey     = "mockprep.user"
)

// Claims is the bearer token payload.
type Claims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 bearer tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens returns a Tokens signing with secret. Tokens expire after ttl.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for u and returns it with its expiry.
func (t *Tokens) Issue(u *user.User) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	claims := &Claims{
		UserID: u.ID.String(),
		Role:   string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   u.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("api: sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies raw and returns its claims.
func (t *Tokens) Parse(raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", mockprep.ErrUnauthorized, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, mockprep.ErrUnauthorized
	}
	return claims, nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("api: hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// authenticate resolves the bearer token to an active user and stores it
// on the context.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			s.fail(c, mockprep.ErrUnauthorized)
			return
		}

		claims, err := s.tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			s.fail(c, err)
			return
		}
		userID, err := id.ParseUserID(claims.UserID)
		if err != nil {
			s.fail(c, mockprep.ErrUnauthorized)
			return
		}

		u, err := s.engine.GetUser(c.Request.Context(), userID)
		if errors.Is(err, mockprep.ErrUserNotFound) {
			s.fail(c, mockprep.ErrUnauthorized)
			return
		}
		if err != nil {
			s.fail(c, err)
			return
		}
		if !u.IsActive {
			s.fail(c, mockprep.ErrUserInactive)
			return
		}

		c.Set(userKey, u)
		c.Next()
	}
}

// requireAdmin must run after authenticate.
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !currentUser(c).IsAdmin() {
			s.fail(c, mockprep.ErrForbidden)
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *user.User {
	return c.MustGet(userKey).(*user.User) //nolint:forcetypeassert // set by authenticate
}
