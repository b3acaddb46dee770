// Package storage defines the durable key-value persistence used by the token
// store and the onboarding accumulator.
package storage

import (
	"context"
	"strings"
)

// Well-known key names. Callers namespace them with Key.
const (
	AuthTokenKey      = "auth_token"
	UserKey           = "user"
	OnboardingDataKey = "onboarding_data"
	// IdentitySessionKey holds the identity provider's refresh state.
	IdentitySessionKey = "identity_session"
)

// Repo is a string key-value store. Implementations must be safe for
// concurrent use.
type Repo interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set overwrites the value stored at key.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// Key namespaces name under prefix, e.g. Key("@interiors", "auth_token")
// returns "@interiors/auth_token".
func Key(prefix, name string) string {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
