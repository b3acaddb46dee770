package token

import (
	"context"
	"strings"
	"sync"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var _ Store = (*PersistentStore)(nil)

// PersistentStore keeps the token in a storage.Repo. When a repo call fails the
// store serves reads from an in-process copy and logs a single warning. Writes
// still go to the repo, and the first successful write re-arms persistence.
// A nil repo yields a memory-only store.
type PersistentStore struct {
	repo storage.Repo
	key  string
	log  zerolog.Logger

	mu       sync.Mutex
	degraded bool
	memory   string
	warnOnce sync.Once
}

type StoreOption func(*PersistentStore)

// WithLogger sets the logger used for the fallback warning.
func WithLogger(l zerolog.Logger) StoreOption {
	return func(s *PersistentStore) {
		s.log = l
	}
}

// WithKey overrides the storage key, which defaults to storage.AuthTokenKey.
func WithKey(key string) StoreOption {
	return func(s *PersistentStore) {
		s.key = key
	}
}

// NewStore returns a Store persisting into repo. A nil repo is valid and
// yields a memory-only store.
func NewStore(repo storage.Repo, options ...StoreOption) *PersistentStore {
	s := &PersistentStore{
		repo: repo,
		key:  storage.AuthTokenKey,
		log:  log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	if repo == nil {
		s.degrade(autherrors.ErrStorageUnavailable)
	}
	return s
}

// Repo returns the backing repo, nil for a memory-only store.
func (s *PersistentStore) Repo() storage.Repo {
	return s.repo
}

// Degraded reports whether reads are currently served from the in-memory copy.
func (s *PersistentStore) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *PersistentStore) Get(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded {
		return s.memory, nil
	}
	v, ok, err := s.repo.Get(ctx, s.key)
	if err != nil {
		s.degrade(err)
		return s.memory, nil
	}
	if !ok {
		v = ""
	}
	s.memory = v
	return v, nil
}

func (s *PersistentStore) Set(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return autherrors.ErrInvalidToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.memory = token
	if s.repo != nil {
		s.written(s.repo.Set(ctx, s.key, token))
	}
	return nil
}

func (s *PersistentStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.memory = ""
	if s.repo != nil {
		s.written(s.repo.Delete(ctx, s.key))
	}
	return nil
}

// written records the outcome of a repo write. mu must be held.
func (s *PersistentStore) written(err error) {
	if err != nil {
		s.degrade(err)
		return
	}
	if s.degraded {
		s.log.Info().Str("key", s.key).Msg("token persistence restored")
	}
	s.degraded = false
}

// degrade must be called with mu held.
func (s *PersistentStore) degrade(cause error) {
	s.degraded = true
	s.warnOnce.Do(func() {
		metrics.TokenStoreFallbacksTotal.Inc()
		s.log.Warn().Err(cause).Str("key", s.key).Msg("token persistence unavailable, keeping token in memory")
	})
}
