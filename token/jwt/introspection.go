package jwt

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Claims is the subset of token claims the client cares about.
type Claims struct {
	Subject   string
	Email     string
	Name      string
	Role      string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// Expired reports whether the token expires within skew of now. A token with
// no exp claim never expires.
func (c Claims) Expired(now time.Time, skew time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(c.ExpiresAt)
}

// Inspect decodes the claims of rawToken without verifying its signature.
// The client never holds the signing keys, so this is only suitable for
// reading expiry and identity hints.
func Inspect(rawToken string) (Claims, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return Claims{}, autherrors.ErrInvalidToken
	}

	parsed, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return Claims{}, autherrors.Wrapf(autherrors.ErrInvalidToken, "[Inspect] %v", err)
	}
	mapClaims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return Claims{}, autherrors.Wrapf(autherrors.ErrInvalidToken, "[Inspect] unexpected claims type")
	}
	return fromMapClaims(mapClaims), nil
}

func fromMapClaims(m jwtlib.MapClaims) Claims {
	c := Claims{}
	c.Subject, _ = m.GetSubject()
	c.Email, _ = m["email"].(string)
	c.Name, _ = m["name"].(string)
	c.Role, _ = m["role"].(string)
	if exp, err := m.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	if iat, err := m.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	return c
}
