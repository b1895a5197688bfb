package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthError describes a rejected credential. It always maps to HTTP 401 and
// never carries side effects.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("unauthorized: %s", e.Reason)
}

// Manager issues and verifies the HS256 bearer tokens that gate the
// administrative endpoints.
type Manager struct {
	secret []byte

	// now is swappable for tests
	now func() time.Time
}

// NewManager creates a token manager around the shared signing secret.
func NewManager(secret string) *Manager {
	return &Manager{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Issue creates a signed token for the given subject, valid for ttl.
func (m *Manager) Issue(subject string, ttl time.Duration) (string, error) {
	now := m.now().UTC()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks a raw token string and returns its subject. Expired,
// malformed, or wrongly signed tokens yield an *AuthError.
func (m *Manager) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", &AuthError{Reason: "token expired"}
		}
		return "", &AuthError{Reason: "invalid token"}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", &AuthError{Reason: "invalid token"}
	}

	subject, _ := claims.GetSubject()
	return subject, nil
}

// ParseBearer extracts the token from an Authorization header value. The
// scheme comparison is case-insensitive, matching common client behavior.
func ParseBearer(header string) (string, error) {
	if header == "" {
		return "", &AuthError{Reason: "missing Authorization header"}
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", &AuthError{Reason: "malformed Authorization header, expected 'Bearer <token>'"}
	}

	return strings.TrimSpace(parts[1]), nil
}
