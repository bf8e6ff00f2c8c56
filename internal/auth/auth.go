// Package auth is the identity provider: it verifies passwords against the
// user table and issues signed session cookies. Everything downstream only
// ever sees a core.Identity.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"gastos/internal/core"
)

// ErrInvalidCredentials is returned for both unknown users and wrong
// passwords, so login failures don't leak which usernames exist.
var ErrInvalidCredentials = errors.New("invalid username or password")

// CredentialStore is the slice of the repository the auth service needs.
type CredentialStore interface {
	GetCredentials(ctx context.Context, username string) (core.User, string, error)
}

type claims struct {
	UserID   uint   `json:"uid"`
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
	Manager  bool   `json:"manager"`
	jwt.RegisteredClaims
}

// Sessions signs and verifies session tokens (HS256).
type Sessions struct {
	secret []byte
	ttl    time.Duration
}

func NewSessions(secret string, ttl time.Duration) *Sessions {
	return &Sessions{secret: []byte(secret), ttl: ttl}
}

// TTL returns the configured session lifetime.
func (s *Sessions) TTL() time.Duration { return s.ttl }

// Issue creates a session token for the user.
func (s *Sessions) Issue(u core.User) (string, error) {
	now := time.Now()
	c := claims{
		UserID:   u.ID,
		Username: u.Username,
		Admin:    u.Admin,
		Manager:  u.Manager,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Parse turns a session token back into an identity. Any parse or
// validation failure yields the anonymous identity and an error.
func (s *Sessions) Parse(tokenStr string) (core.Identity, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenStr, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return core.Anonymous, errors.New("invalid session token")
	}
	return core.Identity{
		UserID:        c.UserID,
		Username:      c.Username,
		Authenticated: true,
		Privileged:    c.Admin || c.Manager,
	}, nil
}

// Service ties credential checks and session issuance together.
type Service struct {
	store    CredentialStore
	sessions *Sessions
}

func NewService(store CredentialStore, sessions *Sessions) *Service {
	return &Service{store: store, sessions: sessions}
}

// Login verifies the password and returns the user plus a session token.
func (s *Service) Login(ctx context.Context, username, password string) (core.User, string, error) {
	user, hash, err := s.store.GetCredentials(ctx, username)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.User{}, "", ErrInvalidCredentials
		}
		return core.User{}, "", fmt.Errorf("lookup credentials: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return core.User{}, "", ErrInvalidCredentials
	}
	token, err := s.sessions.Issue(user)
	if err != nil {
		return core.User{}, "", err
	}
	return user, token, nil
}

// HashPassword produces a bcrypt hash for storing new user credentials.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
