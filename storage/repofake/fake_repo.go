package repofake

import (
	"context"
	"sync"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

// FakeRepo is an in-memory key-value store. FailWith makes every call return
// the given error, which tests use to simulate unavailable persistence.
type FakeRepo struct {
	values map[string]string
	fail   error
	writes int
	lock   sync.RWMutex
}

func NewFakeRepo() *FakeRepo {
	return &FakeRepo{
		values: make(map[string]string),
	}
}

// FailWith makes subsequent calls fail with err; nil restores normal behaviour.
func (r *FakeRepo) FailWith(err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.fail = err
}

// Writes returns the number of successful Set calls.
func (r *FakeRepo) Writes() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.writes
}

func (r *FakeRepo) Get(_ context.Context, key string) (string, bool, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if r.fail != nil {
		return "", false, r.fail
	}
	if key == "" {
		return "", false, autherrors.ErrKeyRequired
	}
	v, ok := r.values[key]
	return v, ok, nil
}

func (r *FakeRepo) Set(_ context.Context, key, value string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.fail != nil {
		return r.fail
	}
	if key == "" {
		return autherrors.ErrKeyRequired
	}
	r.values[key] = value
	r.writes++
	return nil
}

func (r *FakeRepo) Delete(_ context.Context, key string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.fail != nil {
		return r.fail
	}
	delete(r.values, key)
	return nil
}

func (r *FakeRepo) Close() error {
	return nil
}
