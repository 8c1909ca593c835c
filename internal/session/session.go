// Package session issues and verifies the signed cookie that identifies a signed-in user.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// CookieName holds the session token.
	CookieName = "app_session_id"
	// TTL is how long a session stays valid.
	TTL = 365 * 24 * time.Hour
)

var ErrInvalid = errors.New("invalid session")

// Claims is the token payload. Subject carries the user's openId.
type Claims struct {
	jwt.RegisteredClaims
}

// Manager signs and verifies session tokens.
type Manager struct {
	secret  []byte
	revoker Revoker
	now     func() time.Time
}

func NewManager(secret string, revoker Revoker) *Manager {
	if revoker == nil {
		revoker = Nop{}
	}
	return &Manager{secret: []byte(secret), revoker: revoker, now: time.Now}
}

// Issue returns a token for openID with a fresh token id.
func (m *Manager) Issue(openID string) (string, error) {
	if openID == "" {
		return "", fmt.Errorf("issue session: empty subject")
	}
	now := m.now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   openID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TTL)),
	}}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Parse verifies the token and returns its claims. Revoked tokens are rejected.
func (m *Manager) Parse(ctx context.Context, raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrInvalid
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalid
	}
	if claims.Subject == "" {
		return nil, ErrInvalid
	}

	revoked, err := m.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrInvalid
	}
	return claims, nil
}

// Revoke invalidates the token until it would have expired anyway. Unparseable
// tokens are ignored.
func (m *Manager) Revoke(ctx context.Context, raw string) error {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(m.now())
	if ttl <= 0 {
		return nil
	}
	return m.revoker.Revoke(ctx, claims.ID, ttl)
}

// CookieOptions describes how the session cookie is written for one request.
type CookieOptions struct {
	Path     string
	HTTPOnly bool
	Secure   bool
	SameSite http.SameSite
}

// OptionsFor derives cookie options from the request. The cookie is Secure over
// HTTPS and always SameSite=Lax, so cross-site POSTs arrive without it.
func OptionsFor(r *http.Request) CookieOptions {
	return CookieOptions{Path: "/", HTTPOnly: true, Secure: isSecure(r), SameSite: http.SameSiteLaxMode}
}

// Cookie builds the session cookie. A negative maxAge expires it immediately.
func (o CookieOptions) Cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     o.Path,
		MaxAge:   maxAge,
		HttpOnly: o.HTTPOnly,
		Secure:   o.Secure,
		SameSite: o.SameSite,
	}
}

func isSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	proto := r.Header.Get("X-Forwarded-Proto")
	for _, p := range strings.Split(proto, ",") {
		if strings.EqualFold(strings.TrimSpace(p), "https") {
			return true
		}
	}
	return false
}
