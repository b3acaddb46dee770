// Package identity defines the remote authentication provider the session
// controller signs users in with. The provider issues short-lived identity
// tokens that are exchanged once for a backend session token.
package identity

import (
	"context"
	"errors"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("no account exists for this email")
	ErrEmailInUse         = errors.New("an account already exists for this email")
	ErrCancelled          = errors.New("sign-in was cancelled")
	ErrNoCurrentUser      = errors.New("no signed-in user")
	ErrProviderDisabled   = errors.New("sign-in provider is not configured")
)

var userMessages = []struct {
	err error
	msg string
}{
	{ErrInvalidCredentials, "The email or password you entered is incorrect."},
	{ErrUserNotFound, "We couldn't find an account with that email."},
	{ErrEmailInUse, "An account with this email already exists."},
	{ErrCancelled, "Sign-in was cancelled."},
	{ErrNoCurrentUser, "Please sign in again."},
	{ErrProviderDisabled, "This sign-in method is not available."},
}

// UserMessage returns the user-facing text for a provider sentinel in err's
// chain.
func UserMessage(err error) (string, bool) {
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return m.msg, true
		}
	}
	return "", false
}

// Account is the identity the provider reports for the signed-in user.
type Account struct {
	UID           string `json:"uid"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName,omitempty"`
	PhotoURL      string `json:"photoURL,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
	// ProviderID is "password", "google.com" or "apple.com".
	ProviderID string `json:"providerId,omitempty"`
}

const (
	ProviderPassword = "password"
	ProviderGoogle   = "google.com"
	ProviderApple    = "apple.com"
)

// Provider is a remote authentication service.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (Account, error)
	// SignUp creates a password account and sets its display name.
	SignUp(ctx context.Context, email, password, name string) (Account, error)
	SignInWithGoogle(ctx context.Context) (Account, error)
	SignInWithApple(ctx context.Context) (Account, error)
	SignOut(ctx context.Context) error
	// IDToken returns the current identity token, minting a new one when the
	// cached token is near expiry or forceRefresh is set.
	IDToken(ctx context.Context, forceRefresh bool) (string, error)
	CurrentUser() (Account, bool)
}

// FederatedCredential is what an OAuth identity provider hands back after the
// user consents.
type FederatedCredential struct {
	ProviderID  string
	IDToken     string
	AccessToken string
}

// FederatedSource runs an interactive OAuth sign-in.
type FederatedSource interface {
	Credential(ctx context.Context) (FederatedCredential, error)
}
