// Package auth issues and verifies session tokens and guards HTTP routes.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"fintrack/internal/core"
)

// DefaultTTL is the session lifetime when none is configured.
const DefaultTTL = time.Hour

// Error is an authentication failure whose message is safe to show clients.
type Error struct {
	msg string
}

func (e *Error) Error() string { return e.msg }
func (e *Error) Unwrap() error { return core.ErrUnauthenticated }

var (
	ErrNoToken      = &Error{msg: "No token provided"}
	ErrInvalidToken = &Error{msg: "Invalid or expired token"}
)

// Claims is the signed token payload.
type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret, issuer string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// Issue creates a token for userID and the Session it represents.
func (i *Issuer) Issue(userID string) (string, Session, error) {
	if userID == "" {
		return "", Session{}, errors.New("issue token: empty user id")
	}
	now := i.now().UTC().Truncate(time.Second)
	s := Session{
		UserID:    userID,
		TokenID:   uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(i.ttl),
	}
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.TokenID,
			Issuer:    i.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", Session{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, s, nil
}

// Verify checks signature, issuer and expiry and returns the Session.
// Every failure maps to ErrInvalidToken.
func (i *Issuer) Verify(token string) (Session, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		return Session{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" || claims.ID == "" {
		return Session{}, ErrInvalidToken
	}
	s := Session{UserID: claims.UserID, TokenID: claims.ID}
	if claims.IssuedAt != nil {
		s.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	s.ExpiresAt = claims.ExpiresAt.Time.UTC()
	return s, nil
}
