// Package providerfake is an in-memory identity.Provider for tests and local
// development.
package providerfake

import (
	"context"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/identity"
	"golang.org/x/crypto/bcrypt"
)

var _ identity.Provider = (*Provider)(nil)

type account struct {
	identity.Account
	passwordHash string
}

// Provider keeps accounts in memory and issues unsigned JWT-shaped identity
// tokens that token/jwt can inspect.
type Provider struct {
	mu       sync.Mutex
	accounts map[string]*account // keyed by lower-cased email
	current  *identity.Account
	tokenTTL time.Duration
	now      func() time.Time
	minted   int

	google *identity.Account
	apple  *identity.Account

	failures map[string]error
	calls    map[string]int
}

type Option func(*Provider)

func WithTokenTTL(d time.Duration) Option {
	return func(p *Provider) {
		p.tokenTTL = d
	}
}

func WithNowTime(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// WithGoogleAccount makes SignInWithGoogle succeed as a. Without it the
// Google flow behaves as if the user cancelled.
func WithGoogleAccount(a identity.Account) Option {
	return func(p *Provider) {
		a.ProviderID = identity.ProviderGoogle
		p.google = &a
	}
}

func WithAppleAccount(a identity.Account) Option {
	return func(p *Provider) {
		a.ProviderID = identity.ProviderApple
		p.apple = &a
	}
}

func New(options ...Option) *Provider {
	p := &Provider{
		accounts: make(map[string]*account),
		tokenTTL: time.Hour,
		now:      time.Now,
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Operation names accepted by FailWith and Calls.
const (
	OpSignIn     = "SignIn"
	OpSignUp     = "SignUp"
	OpGoogle     = "SignInWithGoogle"
	OpApple      = "SignInWithApple"
	OpSignOut    = "SignOut"
	OpIDToken    = "IDToken"
	OpForceToken = "IDToken(force)"
)

// FailWith makes op fail with err until cleared with a nil err.
func (p *Provider) FailWith(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failures, op)
		return
	}
	p.failures[op] = err
}

// Calls returns how many times op was invoked.
func (p *Provider) Calls(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

// AddAccount registers a password account directly.
func (p *Provider) AddAccount(email, password, name string) (identity.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return identity.Account{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	key := strings.ToLower(strings.TrimSpace(email))
	if _, ok := p.accounts[key]; ok {
		return identity.Account{}, identity.ErrEmailInUse
	}
	a := &account{
		Account: identity.Account{
			UID:         uuid.NewString(),
			Email:       strings.TrimSpace(email),
			DisplayName: name,
			ProviderID:  identity.ProviderPassword,
		},
		passwordHash: string(hash),
	}
	p.accounts[key] = a
	return a.Account, nil
}

func (p *Provider) begin(op string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[op]++
	return p.failures[op]
}

func (p *Provider) SignIn(_ context.Context, email, password string) (identity.Account, error) {
	if err := p.begin(OpSignIn); err != nil {
		return identity.Account{}, err
	}

	p.mu.Lock()
	a, ok := p.accounts[strings.ToLower(strings.TrimSpace(email))]
	p.mu.Unlock()
	if !ok {
		return identity.Account{}, identity.ErrUserNotFound
	}
	if bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password)) != nil {
		return identity.Account{}, identity.ErrInvalidCredentials
	}
	return p.setCurrent(a.Account), nil
}

func (p *Provider) SignUp(_ context.Context, email, password, name string) (identity.Account, error) {
	if err := p.begin(OpSignUp); err != nil {
		return identity.Account{}, err
	}
	a, err := p.AddAccount(email, password, name)
	if err != nil {
		return identity.Account{}, err
	}
	return p.setCurrent(a), nil
}

func (p *Provider) SignInWithGoogle(_ context.Context) (identity.Account, error) {
	if err := p.begin(OpGoogle); err != nil {
		return identity.Account{}, err
	}
	if p.google == nil {
		return identity.Account{}, identity.ErrCancelled
	}
	return p.setCurrent(*p.google), nil
}

func (p *Provider) SignInWithApple(_ context.Context) (identity.Account, error) {
	if err := p.begin(OpApple); err != nil {
		return identity.Account{}, err
	}
	if p.apple == nil {
		return identity.Account{}, identity.ErrCancelled
	}
	return p.setCurrent(*p.apple), nil
}

// SignOut always clears the current user, even when a failure is injected.
func (p *Provider) SignOut(_ context.Context) error {
	err := p.begin(OpSignOut)
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
	return err
}

func (p *Provider) IDToken(_ context.Context, forceRefresh bool) (string, error) {
	op := OpIDToken
	if forceRefresh {
		op = OpForceToken
	}
	if err := p.begin(op); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return "", identity.ErrNoCurrentUser
	}
	p.minted++
	now := p.now()
	claims := jwtlib.MapClaims{
		"sub":      p.current.UID,
		"email":    p.current.Email,
		"name":     p.current.DisplayName,
		"provider": p.current.ProviderID,
		"iat":      now.Unix(),
		"exp":      now.Add(p.tokenTTL).Unix(),
		"jti":      p.minted,
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodNone, claims).SignedString(jwtlib.UnsafeAllowNoneSignatureType)
}

func (p *Provider) CurrentUser() (identity.Account, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return identity.Account{}, false
	}
	return *p.current, true
}

func (p *Provider) setCurrent(a identity.Account) identity.Account {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = &a
	return a
}
