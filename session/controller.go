// Package session owns the authentication state of the client. The
// Controller is the only writer of that state; every operation runs its
// remote calls first and then commits a single transition.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/backend"
	"github.com/jrsteele09/go-auth-client/identity"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/onboarding"
	"github.com/jrsteele09/go-auth-client/storage"
	"github.com/jrsteele09/go-auth-client/token"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Backend is the application auth API. *backend.Service implements it.
type Backend interface {
	Register(ctx context.Context, req backend.RegisterRequest) (*backend.AuthResponse, error)
	Login(ctx context.Context, req backend.LoginRequest) (*backend.AuthResponse, error)
	Profile(ctx context.Context) (*users.User, error)
	ProfileWithToken(ctx context.Context, bearer string) (*users.User, error)
	UpdateRole(ctx context.Context, role users.RoleType) (*users.User, error)
	CompleteRegistration(ctx context.Context, payload *apiclient.Multipart) (*users.User, error)
}

var (
	_ Backend                 = (*backend.Service)(nil)
	_ apiclient.TokenListener = (*Controller)(nil)
)

// Values sent as authProvider in registration requests.
const (
	authProviderEmail  = "email"
	authProviderGoogle = "google"
	authProviderApple  = "apple"
)

// Registration is the input of Register.
type Registration struct {
	Email    string
	Password string
	Name     string
	Phone    string
	Role     users.RoleType // defaults to users.RoleUser
}

type subscriber struct {
	id uint64
	fn func(Session)
}

type Controller struct {
	tokens     token.Store
	api        Backend
	identity   identity.Provider
	onboarding *onboarding.Accumulator
	cache      storage.Repo
	cacheKey   string
	policy     onboarding.Policy
	retry      apiclient.RetryOptions
	log        zerolog.Logger

	// commitMu orders generation changes against commits. Lock order is
	// commitMu, notifyMu, mu.
	commitMu sync.Mutex
	notifyMu sync.Mutex
	mu       sync.Mutex
	state    state
	gen      uint64
	subs     []subscriber
	nextSub  uint64
}

type Option func(*Controller)

func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) {
		c.log = l
	}
}

// WithUserCache persists the signed-in profile under key for offline
// display. An empty key uses storage.UserKey. Without this option the profile
// goes to the token store's repo when it exposes one.
func WithUserCache(repo storage.Repo, key string) Option {
	return func(c *Controller) {
		c.cache = repo
		if key != "" {
			c.cacheKey = key
		}
	}
}

func WithOnboardingPolicy(p onboarding.Policy) Option {
	return func(c *Controller) {
		c.policy = p
	}
}

// WithRetry bounds the retries of profile refreshes.
func WithRetry(opts apiclient.RetryOptions) Option {
	return func(c *Controller) {
		c.retry = opts
	}
}

// New returns a controller in the loading state. Call Restore to resolve it.
// The profile cache defaults to the repo behind tokens (see WithUserCache).
func New(tokens token.Store, api Backend, provider identity.Provider, acc *onboarding.Accumulator, options ...Option) (*Controller, error) {
	if tokens == nil {
		return nil, errors.New("[NewController] token store is required")
	}
	if api == nil {
		return nil, errors.New("[NewController] backend is required")
	}
	if provider == nil {
		return nil, errors.New("[NewController] identity provider is required")
	}
	if acc == nil {
		return nil, errors.New("[NewController] onboarding accumulator is required")
	}
	c := &Controller{
		tokens:     tokens,
		api:        api,
		identity:   provider,
		onboarding: acc,
		cacheKey:   storage.UserKey,
		policy:     onboarding.PolicyLenient,
		log:        log.Logger,
		state:      loading{prior: unauthenticated{}},
	}
	for _, opt := range options {
		opt(c)
	}
	if c.cache == nil {
		if r, ok := tokens.(repoBacked); ok {
			c.cache = r.Repo()
		}
	}
	return c, nil
}

type repoBacked interface {
	Repo() storage.Repo
}

// Session returns a snapshot of the current state.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return flags(c.state)
}

// Subscribe calls fn with the new snapshot after every transition, in
// order. fn runs while transitions are serialized: it may read Session but
// must not call other Controller methods. The returned func unsubscribes.
func (c *Controller) Subscribe(fn func(Session)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSub++
	id := c.nextSub
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// Restore resolves the initial loading state from the stored token. It
// never reports failure: any problem leaves the session signed out.
func (c *Controller) Restore(ctx context.Context) error {
	gen := c.begin(true)
	ectx := context.WithoutCancel(ctx)

	tok, err := c.tokens.Get(ctx)
	if err != nil || tok == "" {
		return c.quiet(c.commit(gen, func() error {
			c.forgetUser(ectx)
			return nil
		}, signedOut{}))
	}

	user, err := c.api.Profile(ctx)
	if err != nil {
		c.log.Info().Err(err).Msg("session restoration failed")
		invalid := apiclient.KindOf(err) == apiclient.KindAuth
		return c.quiet(c.commit(gen, func() error {
			if invalid {
				if err := c.tokens.Clear(ectx); err != nil {
					c.log.Warn().Err(err).Msg("could not clear rejected token")
				}
			}
			c.forgetUser(ectx)
			return nil
		}, signedOut{}))
	}

	// The profile call may have refreshed the token.
	if current, err := c.tokens.Get(ctx); err == nil && current != "" {
		tok = current
	}
	return c.quiet(c.commit(gen, func() error {
		c.rememberUser(ectx, user)
		return nil
	}, signedIn{user: user, token: tok}))
}

// Login signs in with email and password and exchanges the identity for a
// session.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	return c.passwordFlow(ctx, email, password, Registration{})
}

// Register signs in, creating the identity account when it does not exist,
// and registers the profile with the backend.
func (c *Controller) Register(ctx context.Context, r Registration) error {
	return c.passwordFlow(ctx, r.Email, r.Password, r)
}

func (c *Controller) passwordFlow(ctx context.Context, email, password string, r Registration) error {
	gen := c.begin(true)
	acct, err := c.signInOrUp(ctx, email, password, r.Name)
	if err != nil {
		return c.fail(gen, err)
	}
	return c.exchange(ctx, gen, acct, authProviderEmail, r)
}

// signInOrUp falls back to account creation only when a name was given and
// the provider does not recognise the credentials.
func (c *Controller) signInOrUp(ctx context.Context, email, password, name string) (identity.Account, error) {
	acct, err := c.identity.SignIn(ctx, email, password)
	if err == nil || strings.TrimSpace(name) == "" {
		return acct, err
	}
	if !errors.Is(err, identity.ErrUserNotFound) && !errors.Is(err, identity.ErrInvalidCredentials) {
		return identity.Account{}, err
	}
	acct, upErr := c.identity.SignUp(ctx, email, password, name)
	if errors.Is(upErr, identity.ErrEmailInUse) {
		// The account exists; the password was wrong.
		return identity.Account{}, err
	}
	return acct, upErr
}

func (c *Controller) LoginWithGoogle(ctx context.Context) error {
	gen := c.begin(true)
	acct, err := c.identity.SignInWithGoogle(ctx)
	if err != nil {
		return c.fail(gen, err)
	}
	return c.exchange(ctx, gen, acct, authProviderGoogle, Registration{})
}

func (c *Controller) LoginWithApple(ctx context.Context) error {
	gen := c.begin(true)
	acct, err := c.identity.SignInWithApple(ctx)
	if err != nil {
		return c.fail(gen, err)
	}
	return c.exchange(ctx, gen, acct, authProviderApple, Registration{})
}

// exchange trades the provider identity for a backend session: register
// first, log in on conflict, and as a last resort read the existing profile
// with the identity token.
func (c *Controller) exchange(ctx context.Context, gen uint64, acct identity.Account, authProvider string, r Registration) error {
	idToken, err := c.identity.IDToken(ctx, false)
	if err != nil {
		return c.fail(gen, err)
	}

	role := r.Role
	if role == "" {
		role = users.RoleUser
	}
	resp, err := c.api.Register(ctx, backend.RegisterRequest{
		Name:          displayName(r.Name, acct),
		Email:         acct.Email,
		Phone:         r.Phone,
		Role:          role,
		FirebaseToken: idToken,
		AuthProvider:  authProvider,
		PhotoURL:      acct.PhotoURL,
	})
	if errors.Is(err, backend.ErrAlreadyExists) {
		resp, err = c.loginExisting(ctx, acct.Email, idToken)
	}
	if err != nil {
		return c.fail(gen, err)
	}

	ectx := context.WithoutCancel(ctx)
	err = c.commit(gen, func() error {
		if err := c.tokens.Set(ectx, resp.Token); err != nil {
			return err
		}
		c.rememberUser(ectx, resp.User)
		return nil
	}, signedIn{user: resp.User, token: resp.Token})
	if err != nil && !errors.Is(err, autherrors.ErrSuperseded) {
		return c.fail(gen, err)
	}
	return err
}

func (c *Controller) loginExisting(ctx context.Context, email, idToken string) (*backend.AuthResponse, error) {
	resp, err := c.api.Login(ctx, backend.LoginRequest{Email: email, FirebaseToken: idToken})
	if err == nil {
		return resp, nil
	}
	c.log.Warn().Err(err).Msg("backend login failed after registration conflict, reading existing profile")
	user, perr := c.api.ProfileWithToken(ctx, idToken)
	if perr != nil {
		return nil, err
	}
	return &backend.AuthResponse{User: user, Token: idToken}, nil
}

// Logout always ends signed out with the token store cleared. A failed
// remote sign-out is recorded as a non-blocking error and returned.
func (c *Controller) Logout(ctx context.Context) error {
	gen := c.begin(true)
	signOutErr := c.identity.SignOut(ctx)
	var message string
	if signOutErr != nil {
		c.log.Warn().Err(signOutErr).Msg("remote sign-out failed")
		message = userMessage(signOutErr)
	}

	ectx := context.WithoutCancel(ctx)
	err := c.commit(gen, func() error {
		if err := c.tokens.Clear(ectx); err != nil {
			c.log.Warn().Err(err).Msg("could not clear token store")
		}
		c.forgetUser(ectx)
		return nil
	}, signedOut{message: message})
	if err != nil {
		return err
	}
	return signOutErr
}

// ContinueAsGuest enters the main app without a user. Any stored token is
// cleared so no request is sent with another user's identity.
func (c *Controller) ContinueAsGuest(ctx context.Context) error {
	gen := c.begin(false)
	ectx := context.WithoutCancel(ctx)
	return c.commit(gen, func() error {
		if err := c.tokens.Clear(ectx); err != nil {
			c.log.Warn().Err(err).Msg("could not clear token store")
		}
		c.forgetUser(ectx)
		return nil
	}, guestEntered{})
}

// UpdateUser merges patch into the current user. It does nothing without a
// signed-in user.
func (c *Controller) UpdateUser(ctx context.Context, patch users.Patch) {
	if c.Session().User == nil || patch.IsEmpty() {
		return
	}
	s := c.dispatch(userPatched{patch: patch})
	if s.User != nil {
		c.rememberUser(context.WithoutCancel(ctx), s.User)
	}
}

// UpdateUserRole changes the role on the server and adopts the returned
// profile.
func (c *Controller) UpdateUserRole(ctx context.Context, role users.RoleType) error {
	gen := c.begin(true)
	if _, err := c.requireUser(); err != nil {
		return c.fail(gen, err)
	}
	user, err := c.api.UpdateRole(ctx, role)
	if err != nil {
		return c.fail(gen, err)
	}
	return c.commitUser(ctx, gen, user)
}

// RefreshProfile re-reads the profile from the server, retrying transient
// failures.
func (c *Controller) RefreshProfile(ctx context.Context) error {
	gen := c.begin(true)
	if _, err := c.requireUser(); err != nil {
		return c.fail(gen, err)
	}
	user, err := apiclient.Retry(ctx, c.api.Profile, c.retry)
	if err != nil {
		return c.fail(gen, err)
	}
	return c.commitUser(ctx, gen, user)
}

// CompleteOnboarding submits vendor registration data and marks the user's
// onboarding complete. Unlike the other operations its error must be
// handled: callers must not move past onboarding when it fails.
func (c *Controller) CompleteOnboarding(ctx context.Context) error {
	gen := c.begin(true)
	current, err := c.requireUser()
	if err != nil {
		return c.fail(gen, err)
	}
	if !current.IsVendor() {
		current.IsOnboardingComplete = true
		return c.commitUser(ctx, gen, current)
	}

	if res := c.onboarding.Validate(); !res.IsValid {
		if c.policy == onboarding.PolicyStrict {
			return c.fail(gen, &onboarding.IncompleteError{MissingFields: res.MissingFields})
		}
		c.log.Warn().Strs("missing", res.MissingFields).Msg("submitting incomplete vendor registration")
	}
	payload, err := c.onboarding.PrepareAPIPayload()
	if err != nil {
		return c.fail(gen, err)
	}
	submitted, err := c.api.CompleteRegistration(ctx, payload)
	if err != nil {
		return c.fail(gen, err)
	}
	if err := c.onboarding.Clear(context.WithoutCancel(ctx)); err != nil {
		c.log.Warn().Err(err).Msg("could not clear onboarding data")
	}

	user, err := apiclient.Retry(ctx, c.api.Profile, c.retry)
	if err != nil {
		c.log.Warn().Err(err).Msg("could not refresh profile after onboarding")
		user = submitted
	}
	if user == nil {
		user = current
	}
	user = user.Clone()
	user.IsOnboardingComplete = true
	return c.commitUser(ctx, gen, user)
}

// ClearError removes the error message and changes nothing else.
func (c *Controller) ClearError() {
	c.dispatch(errorCleared{})
}

// CachedUser returns the profile persisted by the last signed-in session.
func (c *Controller) CachedUser(ctx context.Context) (*users.User, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, ok, err := c.cache.Get(ctx, c.cacheKey)
	if err != nil || !ok {
		return nil, false
	}
	var u users.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		c.log.Warn().Err(err).Msg("discarding unreadable cached user")
		return nil, false
	}
	return &u, true
}

// TokenRefreshed keeps the in-memory token in step with the gateway.
func (c *Controller) TokenRefreshed(tok string) {
	c.dispatch(tokenRefreshed{token: tok})
}

// TokenRevoked signs the session out after the gateway failed to refresh.
func (c *Controller) TokenRevoked() {
	c.dispatch(tokenRevoked{})
	c.forgetUser(context.Background())
}

func (c *Controller) requireUser() (*users.User, error) {
	s := c.Session()
	switch {
	case s.User != nil:
		return s.User, nil
	case s.IsAuthenticated:
		return nil, autherrors.ErrGuestSession
	default:
		return nil, autherrors.ErrNotAuthenticated
	}
}

func (c *Controller) commitUser(ctx context.Context, gen uint64, user *users.User) error {
	ectx := context.WithoutCancel(ctx)
	return c.commit(gen, func() error {
		c.rememberUser(ectx, user)
		return nil
	}, userReplaced{user: user})
}

// begin starts a new generation, superseding every operation in flight.
func (c *Controller) begin(showLoading bool) uint64 {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.mu.Unlock()
	if showLoading {
		c.dispatch(started{})
	}
	return gen
}

// commit runs effects and applies a only while gen is the newest
// generation. Newer operations cannot start in between.
func (c *Controller) commit(gen uint64, effects func() error, a action) error {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()
	c.mu.Lock()
	current := c.gen == gen
	c.mu.Unlock()
	if !current {
		c.log.Debug().Str("action", a.actionName()).Msg("dropping superseded session result")
		return autherrors.ErrSuperseded
	}
	if effects != nil {
		if err := effects(); err != nil {
			return err
		}
	}
	c.dispatch(a)
	return nil
}

// fail records err's user-facing message and returns err.
func (c *Controller) fail(gen uint64, err error) error {
	c.log.Warn().Err(err).Msg("session operation failed")
	if cerr := c.commit(gen, nil, failed{message: userMessage(err)}); cerr != nil {
		return cerr
	}
	return err
}

func (c *Controller) quiet(err error) error {
	if errors.Is(err, autherrors.ErrSuperseded) {
		return nil
	}
	return err
}

func (c *Controller) dispatch(a action) Session {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	next := reduce(c.state, a)
	c.state = next
	snapshot := flags(next)
	subs := append([]subscriber(nil), c.subs...)
	c.mu.Unlock()

	metrics.SessionTransitionsTotal.WithLabelValues(next.stateName()).Inc()
	c.log.Debug().Str("action", a.actionName()).Str("state", next.stateName()).Msg("session transition")

	for _, s := range subs {
		s.fn(snapshot)
	}
	return snapshot
}

func (c *Controller) rememberUser(ctx context.Context, u *users.User) {
	if c.cache == nil || u == nil {
		return
	}
	b, err := json.Marshal(u)
	if err == nil {
		err = c.cache.Set(ctx, c.cacheKey, string(b))
	}
	if err != nil {
		c.log.Warn().Err(err).Msg("could not cache user profile")
	}
}

func (c *Controller) forgetUser(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Delete(ctx, c.cacheKey); err != nil {
		c.log.Warn().Err(err).Msg("could not remove cached user profile")
	}
}

func displayName(name string, acct identity.Account) string {
	for _, v := range []string{name, acct.DisplayName} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	local, _, _ := strings.Cut(acct.Email, "@")
	return local
}
