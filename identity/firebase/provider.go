// Package firebase implements identity.Provider against the Firebase
// Identity Toolkit and Secure Token REST APIs.
package firebase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/identity"
	"github.com/jrsteele09/go-auth-client/storage"
	"github.com/jrsteele09/go-auth-client/token/jwt"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultIdentityURL = "https://identitytoolkit.googleapis.com/v1"
	DefaultTokenURL    = "https://securetoken.googleapis.com/v1"

	// Identity tokens are refreshed this long before they expire.
	expirySkew = 60 * time.Second
)

var _ identity.Provider = (*Provider)(nil)

// persisted is the signed-in state kept across restarts.
type persisted struct {
	Account      identity.Account `json:"account"`
	RefreshToken string           `json:"refreshToken"`
}

type signedIn struct {
	account      identity.Account
	idToken      string
	refreshToken string
	expiresAt    time.Time
}

type Provider struct {
	apiKey      string
	identityURL string
	tokenURL    string
	httpClient  *http.Client
	log         zerolog.Logger
	now         func() time.Time

	toolkit *apiclient.Client
	secure  *apiclient.Client

	google identity.FederatedSource
	apple  identity.FederatedSource

	repo    storage.Repo
	repoKey string

	mu       sync.Mutex
	current  *signedIn
	restored bool
}

type Option func(*Provider)

func WithIdentityURL(u string) Option {
	return func(p *Provider) {
		if u != "" {
			p.identityURL = u
		}
	}
}

func WithTokenURL(u string) Option {
	return func(p *Provider) {
		if u != "" {
			p.tokenURL = u
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = hc
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(p *Provider) {
		p.log = l
	}
}

func WithNowTime(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// WithGoogle enables SignInWithGoogle through src.
func WithGoogle(src identity.FederatedSource) Option {
	return func(p *Provider) {
		p.google = src
	}
}

// WithApple enables SignInWithApple through src.
func WithApple(src identity.FederatedSource) Option {
	return func(p *Provider) {
		p.apple = src
	}
}

// WithPersistence keeps the signed-in account and refresh token under key so
// IDToken keeps working after a restart.
func WithPersistence(repo storage.Repo, key string) Option {
	return func(p *Provider) {
		p.repo = repo
		p.repoKey = key
	}
}

func New(apiKey string, options ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("[firebase.New] api key is required")
	}
	p := &Provider{
		apiKey:      apiKey,
		identityURL: DefaultIdentityURL,
		tokenURL:    DefaultTokenURL,
		log:         log.Logger,
		now:         time.Now,
		repoKey:     storage.IdentitySessionKey,
	}
	for _, opt := range options {
		opt(p)
	}

	clientOpts := []apiclient.Option{apiclient.WithLogger(p.log), apiclient.WithHTTPClient(p.httpClient)}
	var err error
	if p.toolkit, err = apiclient.New(p.identityURL, nil, clientOpts...); err != nil {
		return nil, fmt.Errorf("[firebase.New] identity toolkit client: %w", err)
	}
	if p.secure, err = apiclient.New(p.tokenURL, nil, clientOpts...); err != nil {
		return nil, fmt.Errorf("[firebase.New] secure token client: %w", err)
	}
	return p, nil
}

type authResponse struct {
	LocalID       string `json:"localId"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName"`
	PhotoURL      string `json:"photoUrl"`
	EmailVerified bool   `json:"emailVerified"`
	ProviderID    string `json:"providerId"`
	IDToken       string `json:"idToken"`
	RefreshToken  string `json:"refreshToken"`
	ExpiresIn     string `json:"expiresIn"`
}

func (p *Provider) call(ctx context.Context, method string, body, out any) error {
	req := &apiclient.Request{
		Method:      http.MethodPost,
		Path:        "accounts:" + method,
		Query:       url.Values{"key": {p.apiKey}},
		Body:        body,
		SkipRefresh: true,
	}
	if err := p.toolkit.Do(ctx, req, out); err != nil {
		return mapError(err)
	}
	return nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (identity.Account, error) {
	var resp authResponse
	err := p.call(ctx, "signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return identity.Account{}, err
	}
	resp.ProviderID = identity.ProviderPassword
	p.lookup(ctx, &resp)
	return p.signedIn(ctx, resp), nil
}

func (p *Provider) SignUp(ctx context.Context, email, password, name string) (identity.Account, error) {
	var resp authResponse
	err := p.call(ctx, "signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return identity.Account{}, err
	}
	resp.ProviderID = identity.ProviderPassword

	if name != "" {
		var updated authResponse
		err := p.call(ctx, "update", map[string]any{
			"idToken":           resp.IDToken,
			"displayName":       name,
			"returnSecureToken": true,
		}, &updated)
		if err != nil {
			// The account exists at this point; a missing display name is not fatal.
			p.log.Warn().Err(err).Msg("could not set display name on new account")
		} else {
			resp.DisplayName = updated.DisplayName
			if updated.IDToken != "" {
				resp.IDToken = updated.IDToken
				resp.RefreshToken = updated.RefreshToken
				resp.ExpiresIn = updated.ExpiresIn
			}
		}
	}
	return p.signedIn(ctx, resp), nil
}

func (p *Provider) SignInWithGoogle(ctx context.Context) (identity.Account, error) {
	return p.signInWithIdp(ctx, p.google, identity.ProviderGoogle)
}

func (p *Provider) SignInWithApple(ctx context.Context) (identity.Account, error) {
	return p.signInWithIdp(ctx, p.apple, identity.ProviderApple)
}

func (p *Provider) signInWithIdp(ctx context.Context, src identity.FederatedSource, providerID string) (identity.Account, error) {
	if src == nil {
		return identity.Account{}, identity.ErrProviderDisabled
	}
	cred, err := src.Credential(ctx)
	if err != nil {
		return identity.Account{}, err
	}
	if cred.ProviderID == "" {
		cred.ProviderID = providerID
	}

	postBody := url.Values{"providerId": {cred.ProviderID}}
	if cred.IDToken != "" {
		postBody.Set("id_token", cred.IDToken)
	}
	if cred.AccessToken != "" {
		postBody.Set("access_token", cred.AccessToken)
	}

	var resp authResponse
	err = p.call(ctx, "signInWithIdp", map[string]any{
		"postBody":            postBody.Encode(),
		"requestUri":          "http://localhost",
		"returnIdpCredential": true,
		"returnSecureToken":   true,
	}, &resp)
	if err != nil {
		return identity.Account{}, err
	}
	if resp.ProviderID == "" {
		resp.ProviderID = cred.ProviderID
	}
	return p.signedIn(ctx, resp), nil
}

// lookup fills profile fields the password sign-in response omits. Failures
// are ignored.
func (p *Provider) lookup(ctx context.Context, resp *authResponse) {
	var out struct {
		Users []struct {
			EmailVerified bool   `json:"emailVerified"`
			PhotoURL      string `json:"photoUrl"`
			DisplayName   string `json:"displayName"`
		} `json:"users"`
	}
	if err := p.call(ctx, "lookup", map[string]string{"idToken": resp.IDToken}, &out); err != nil || len(out.Users) == 0 {
		return
	}
	u := out.Users[0]
	resp.EmailVerified = u.EmailVerified
	resp.PhotoURL = u.PhotoURL
	if resp.DisplayName == "" {
		resp.DisplayName = u.DisplayName
	}
}

func (p *Provider) signedIn(ctx context.Context, resp authResponse) identity.Account {
	acct := identity.Account{
		UID:           resp.LocalID,
		Email:         resp.Email,
		DisplayName:   resp.DisplayName,
		PhotoURL:      resp.PhotoURL,
		EmailVerified: resp.EmailVerified,
		ProviderID:    resp.ProviderID,
	}
	s := &signedIn{
		account:      acct,
		idToken:      resp.IDToken,
		refreshToken: resp.RefreshToken,
		expiresAt:    p.expiry(resp.IDToken, resp.ExpiresIn),
	}

	p.mu.Lock()
	p.current = s
	p.restored = true
	p.mu.Unlock()

	p.persist(ctx, s)
	return acct
}

func (p *Provider) expiry(idToken, expiresIn string) time.Time {
	if claims, err := jwt.Inspect(idToken); err == nil && !claims.ExpiresAt.IsZero() {
		return claims.ExpiresAt
	}
	if secs, err := strconv.Atoi(expiresIn); err == nil {
		return p.now().Add(time.Duration(secs) * time.Second)
	}
	return p.now()
}

// SignOut is local: the provider keeps no server-side session.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.current = nil
	p.restored = true
	p.mu.Unlock()

	if p.repo != nil {
		if err := p.repo.Delete(ctx, p.repoKey); err != nil {
			return fmt.Errorf("[Provider.SignOut] %w", err)
		}
	}
	return nil
}

func (p *Provider) CurrentUser() (identity.Account, bool) {
	p.restore(context.Background())
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return identity.Account{}, false
	}
	return p.current.account, true
}

func (p *Provider) IDToken(ctx context.Context, forceRefresh bool) (string, error) {
	p.restore(ctx)

	p.mu.Lock()
	cur := p.current
	p.mu.Unlock()
	if cur == nil {
		return "", identity.ErrNoCurrentUser
	}
	if !forceRefresh && cur.idToken != "" && p.now().Add(expirySkew).Before(cur.expiresAt) {
		return cur.idToken, nil
	}
	return p.refresh(ctx, cur)
}

func (p *Provider) refresh(ctx context.Context, cur *signedIn) (string, error) {
	if cur.refreshToken == "" {
		return "", identity.ErrNoCurrentUser
	}

	var resp struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
	}
	req := &apiclient.Request{
		Method: http.MethodPost,
		Path:   "token",
		Query:  url.Values{"key": {p.apiKey}},
		Form: url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {cur.refreshToken},
		},
		SkipRefresh: true,
	}
	if err := p.secure.Do(ctx, req, &resp); err != nil {
		return "", mapError(err)
	}

	next := &signedIn{
		account:      cur.account,
		idToken:      resp.IDToken,
		refreshToken: resp.RefreshToken,
		expiresAt:    p.expiry(resp.IDToken, resp.ExpiresIn),
	}
	if next.refreshToken == "" {
		next.refreshToken = cur.refreshToken
	}

	p.mu.Lock()
	// A sign-out or new sign-in while refreshing wins.
	if p.current != cur {
		p.mu.Unlock()
		return "", identity.ErrNoCurrentUser
	}
	p.current = next
	p.mu.Unlock()

	p.persist(ctx, next)
	return next.idToken, nil
}

func (p *Provider) persist(ctx context.Context, s *signedIn) {
	if p.repo == nil {
		return
	}
	b, err := json.Marshal(persisted{Account: s.account, RefreshToken: s.refreshToken})
	if err == nil {
		err = p.repo.Set(ctx, p.repoKey, string(b))
	}
	if err != nil {
		p.log.Warn().Err(err).Msg("could not persist identity session")
	}
}

// restore loads the persisted session once.
func (p *Provider) restore(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.restored || p.repo == nil {
		p.restored = true
		return
	}
	p.restored = true

	raw, ok, err := p.repo.Get(ctx, p.repoKey)
	if err != nil || !ok {
		return
	}
	var saved persisted
	if err := json.Unmarshal([]byte(raw), &saved); err != nil || saved.RefreshToken == "" {
		p.log.Warn().Err(err).Msg("discarding unreadable identity session")
		return
	}
	p.current = &signedIn{account: saved.Account, refreshToken: saved.RefreshToken}
}

// mapError converts provider error codes into identity sentinels, keeping the
// gateway error in the chain.
func mapError(err error) error {
	apiErr, ok := apiclient.AsError(err)
	if !ok {
		return err
	}
	var sentinel error
	switch apiErr.Code {
	case "EMAIL_NOT_FOUND", "USER_NOT_FOUND":
		sentinel = identity.ErrUserNotFound
	case "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "INVALID_EMAIL", "USER_DISABLED", "MISSING_PASSWORD":
		sentinel = identity.ErrInvalidCredentials
	case "EMAIL_EXISTS":
		sentinel = identity.ErrEmailInUse
	case "TOKEN_EXPIRED", "INVALID_REFRESH_TOKEN", "INVALID_ID_TOKEN":
		sentinel = identity.ErrNoCurrentUser
	default:
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
