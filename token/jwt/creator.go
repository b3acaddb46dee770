package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

// Subject describes who a session token is issued to.
type Subject struct {
	ID    string
	Email string
	Name  string
	Role  string
}

// Creator issues and verifies HS256 session tokens. It backs the development
// server only; production session tokens come from the real backend.
type Creator struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewCreator creates a new session token creator
func NewCreator(secret string, ttl time.Duration, issuer string) (*Creator, error) {
	if secret == "" {
		return nil, errors.New("[NewCreator] secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("[NewCreator] ttl must be positive")
	}
	return &Creator{secret: []byte(secret), ttl: ttl, issuer: issuer}, nil
}

// CreateSessionToken signs a token for s.
func (c *Creator) CreateSessionToken(s Subject) (string, error) {
	now := NowTimeFunc()
	claims := jwtlib.MapClaims{
		"iss":   c.issuer,
		"sub":   s.ID,
		"email": s.Email,
		"name":  s.Name,
		"role":  s.Role,
		"iat":   now.Unix(),
		"exp":   now.Add(c.ttl).Unix(),
		"jti":   uuid.NewString(),
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the token claims.
func (c *Creator) Verify(rawToken string) (Claims, error) {
	parsed, err := jwtlib.Parse(rawToken, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	},
		jwtlib.WithTimeFunc(NowTimeFunc),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return Claims{}, autherrors.ErrTokenExpired
		}
		return Claims{}, autherrors.Wrapf(autherrors.ErrInvalidToken, "[Creator.Verify] %v", err)
	}
	mapClaims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok || !parsed.Valid {
		return Claims{}, autherrors.ErrInvalidToken
	}
	return fromMapClaims(mapClaims), nil
}
