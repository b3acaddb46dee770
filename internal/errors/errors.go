package errors

import (
	"errors"
	"fmt"
)

// Common errors shared across the auth client packages
var (
	// Session errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrGuestSession     = errors.New("operation requires a signed-in user")
	ErrSuperseded       = errors.New("operation superseded by a newer one")

	// Token errors
	ErrTokenExpired  = errors.New("token expired")
	ErrInvalidToken  = errors.New("invalid token")
	ErrRefreshFailed = errors.New("token refresh failed")

	// Storage errors
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrKeyRequired        = errors.New("storage key is required")

	// General errors
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
