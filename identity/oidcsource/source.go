// Package oidcsource runs an OAuth 2.0 authorization code flow with PKCE
// against an OpenID Connect provider (Google, Apple) and returns the verified
// ID token as an identity.FederatedCredential.
package oidcsource

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/identity"
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"golang.org/x/oauth2"
)

var (
	ErrStateMismatch = errors.New("oauth state mismatch")
	ErrNonceMismatch = errors.New("id token nonce mismatch")
	ErrNoIDToken     = errors.New("no id_token in token response")
)

// AuthorizeFunc sends the user to authURL (a browser or system web view)
// and returns the code and state from the redirect. It returns
// identity.ErrCancelled when the user backs out.
type AuthorizeFunc func(ctx context.Context, authURL string) (code, state string, err error)

type Config struct {
	ProviderID   string
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

var _ identity.FederatedSource = (*Source)(nil)

type Source struct {
	providerID string
	oauth      *oauth2.Config
	verifier   *oidc.IDTokenVerifier
	authorize  AuthorizeFunc
}

// New discovers the issuer's endpoints and keys.
func New(ctx context.Context, cfg Config, authorize AuthorizeFunc) (*Source, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("[oidcsource.New] issuer is required")
	}
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("[oidcsource.New] failed to create OIDC provider: %w", err)
	}
	return NewWithEndpoint(cfg, provider.Endpoint(), provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}), authorize)
}

// NewWithEndpoint builds a Source from known endpoints, skipping discovery.
func NewWithEndpoint(cfg Config, endpoint oauth2.Endpoint, verifier *oidc.IDTokenVerifier, authorize AuthorizeFunc) (*Source, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("[oidcsource.NewWithEndpoint] client id is required")
	}
	if verifier == nil {
		return nil, errors.New("[oidcsource.NewWithEndpoint] verifier is required")
	}
	if authorize == nil {
		return nil, errors.New("[oidcsource.NewWithEndpoint] authorize func is required")
	}
	scopes := utils.CompactStrings(cfg.Scopes)
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}
	return &Source{
		providerID: cfg.ProviderID,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
		},
		verifier:  verifier,
		authorize: authorize,
	}, nil
}

func (s *Source) Credential(ctx context.Context) (identity.FederatedCredential, error) {
	state := uuid.NewString()
	nonce := uuid.NewString()
	codeVerifier := oauth2.GenerateVerifier()

	authURL := s.oauth.AuthCodeURL(state,
		oauth2.S256ChallengeOption(codeVerifier),
		oidc.Nonce(nonce),
	)
	code, gotState, err := s.authorize(ctx, authURL)
	if err != nil {
		return identity.FederatedCredential{}, err
	}
	if code == "" {
		return identity.FederatedCredential{}, identity.ErrCancelled
	}
	if gotState != state {
		return identity.FederatedCredential{}, ErrStateMismatch
	}

	tok, err := s.oauth.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return identity.FederatedCredential{}, fmt.Errorf("[Source.Credential] token exchange failed: %w", err)
	}
	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return identity.FederatedCredential{}, ErrNoIDToken
	}

	idToken, err := s.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return identity.FederatedCredential{}, fmt.Errorf("[Source.Credential] id token verification failed: %w", err)
	}
	if idToken.Nonce != nonce {
		return identity.FederatedCredential{}, ErrNonceMismatch
	}

	return identity.FederatedCredential{
		ProviderID:  s.providerID,
		IDToken:     rawIDToken,
		AccessToken: tok.AccessToken,
	}, nil
}
