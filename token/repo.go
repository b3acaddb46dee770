package token

import "context"

// Store persists the session bearer token. Implementations must be safe for
// concurrent use; concurrent Sets are last-writer-wins.
type Store interface {
	// Get returns the stored token, or "" when none is held.
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}
