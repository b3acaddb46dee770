// Package onboarding accumulates the multi-step registration form and
// produces the completion payload for the backend.
package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jrsteele09/go-auth-client/storage"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrAccountTypeRequired is returned by mutators called before
	// SetAccountType. It indicates a broken screen flow, not a user error.
	ErrAccountTypeRequired = errors.New("onboarding account type has not been chosen")
	ErrInvalidAccountType  = errors.New("onboarding account type must be user or vendor")
	ErrNoData              = errors.New("no onboarding data has been collected")
)

// Accumulator holds onboarding data and writes it through to a storage.Repo
// after every mutation.
type Accumulator struct {
	repo storage.Repo
	key  string
	log  zerolog.Logger

	mu   sync.Mutex
	data *Data // nil until the first write
}

type Option func(*Accumulator)

func WithKey(key string) Option {
	return func(a *Accumulator) {
		a.key = key
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(a *Accumulator) {
		a.log = l
	}
}

// New creates an accumulator, restoring any data persisted by a previous
// process. A nil repo keeps data in memory only.
func New(ctx context.Context, repo storage.Repo, options ...Option) *Accumulator {
	a := &Accumulator{
		repo: repo,
		key:  storage.OnboardingDataKey,
		log:  log.Logger,
	}
	for _, opt := range options {
		opt(a)
	}
	a.restore(ctx)
	return a
}

func (a *Accumulator) restore(ctx context.Context) {
	if a.repo == nil {
		return
	}
	raw, ok, err := a.repo.Get(ctx, a.key)
	if err != nil {
		a.log.Warn().Err(err).Msg("could not read persisted onboarding data")
		return
	}
	if !ok || raw == "" {
		return
	}
	var d Data
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		a.log.Warn().Err(err).Msg("discarding unreadable onboarding data")
		return
	}
	a.data = &d
}

// Data returns a copy of the collected data and whether anything was
// collected.
func (a *Accumulator) Data() (Data, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.data == nil {
		return Data{}, false
	}
	return a.data.clone(), true
}

func (a *Accumulator) SetAccountType(ctx context.Context, accountType users.RoleType) error {
	if accountType != users.RoleUser && accountType != users.RoleVendor {
		return fmt.Errorf("%w: %q", ErrInvalidAccountType, accountType)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.data == nil {
		a.data = &Data{UploadedFiles: []UploadedFile{}}
	}
	a.data.AccountType = accountType
	a.persist(ctx)
	return nil
}

func (a *Accumulator) SetUserDetails(ctx context.Context, v UserDetails) error {
	return a.mutate(ctx, func(d *Data) { d.UserDetails = v })
}

func (a *Accumulator) SetBusinessDetails(ctx context.Context, v BusinessDetails) error {
	return a.mutate(ctx, func(d *Data) { d.BusinessDetails = &v })
}

func (a *Accumulator) SetProfessionalProfile(ctx context.Context, v ProfessionalProfile) error {
	return a.mutate(ctx, func(d *Data) { d.ProfessionalProfile = &v })
}

func (a *Accumulator) SetPortfolio(ctx context.Context, v Portfolio) error {
	return a.mutate(ctx, func(d *Data) { d.Portfolio = &v })
}

func (a *Accumulator) AddPortfolioProject(ctx context.Context, p Project) error {
	return a.mutate(ctx, func(d *Data) {
		if d.Portfolio == nil {
			d.Portfolio = &Portfolio{}
		}
		d.Portfolio.Projects = append(d.Portfolio.Projects, p)
	})
}

func (a *Accumulator) SetAddress(ctx context.Context, v Address) error {
	return a.mutate(ctx, func(d *Data) { d.Address = &v })
}

func (a *Accumulator) SetVerification(ctx context.Context, v Verification) error {
	return a.mutate(ctx, func(d *Data) { d.Verification = &v })
}

func (a *Accumulator) AddUploadedFile(ctx context.Context, f UploadedFile) error {
	return a.mutate(ctx, func(d *Data) { d.UploadedFiles = append(d.UploadedFiles, f) })
}

func (a *Accumulator) mutate(ctx context.Context, fn func(*Data)) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.data == nil || a.data.AccountType == "" {
		return ErrAccountTypeRequired
	}
	fn(a.data)
	a.persist(ctx)
	return nil
}

// persist must be called with mu held. Storage failures are logged; the
// in-memory copy stays authoritative for this process.
func (a *Accumulator) persist(ctx context.Context) {
	if a.repo == nil {
		return
	}
	b, err := json.Marshal(a.data)
	if err == nil {
		err = a.repo.Set(ctx, a.key, string(b))
	}
	if err != nil {
		a.log.Warn().Err(err).Msg("could not persist onboarding data")
	}
}

// Clear resets the accumulator and removes the persisted copy.
func (a *Accumulator) Clear(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data = nil
	if a.repo == nil {
		return nil
	}
	if err := a.repo.Delete(ctx, a.key); err != nil {
		return fmt.Errorf("[Accumulator.Clear] %w", err)
	}
	return nil
}
