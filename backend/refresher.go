package backend

import (
	"context"
	"errors"
	"net/http"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/identity"
)

var _ apiclient.Refresher = (*TokenRefresher)(nil)

// TokenRefresher mints a new session token by exchanging a fresh identity
// token at the login endpoint.
type TokenRefresher struct {
	client   *apiclient.Client
	identity identity.Provider
}

func NewTokenRefresher(client *apiclient.Client, provider identity.Provider) (*TokenRefresher, error) {
	if client == nil {
		return nil, errors.New("[NewTokenRefresher] api client is required")
	}
	if provider == nil {
		return nil, errors.New("[NewTokenRefresher] identity provider is required")
	}
	return &TokenRefresher{client: client, identity: provider}, nil
}

func (r *TokenRefresher) Refresh(ctx context.Context) (string, error) {
	acct, ok := r.identity.CurrentUser()
	if !ok {
		return "", identity.ErrNoCurrentUser
	}
	idToken, err := r.identity.IDToken(ctx, true)
	if err != nil {
		return "", err
	}

	var resp AuthResponse
	req := &apiclient.Request{
		Method:      http.MethodPost,
		Path:        PathLogin,
		Body:        LoginRequest{Email: acct.Email, FirebaseToken: idToken},
		SkipRefresh: true,
	}
	if err := r.client.Do(ctx, req, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", errors.New("[TokenRefresher.Refresh] login response has no token")
	}
	return resp.Token, nil
}
