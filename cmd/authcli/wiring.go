package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/backend"
	"github.com/jrsteele09/go-auth-client/identity"
	"github.com/jrsteele09/go-auth-client/identity/firebase"
	"github.com/jrsteele09/go-auth-client/identity/oidcsource"
	"github.com/jrsteele09/go-auth-client/identity/providerfake"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/onboarding"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/storage"
	"github.com/jrsteele09/go-auth-client/token"
	"github.com/rs/zerolog"
)

// app holds everything a command needs.
type app struct {
	repo       storage.Repo
	controller *session.Controller
	onboarding *onboarding.Accumulator
}

func (a *app) Close() error {
	return a.repo.Close()
}

func newApp(ctx context.Context, cfg config.Config, l zerolog.Logger, in io.Reader, out io.Writer) (*app, error) {
	repo, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	key := func(name string) string { return storage.Key(cfg.GetStorageKeyPrefix(), name) }

	tokens := token.NewStore(repo, token.WithKey(key(storage.AuthTokenKey)), token.WithLogger(l))
	client, err := apiclient.New(cfg.GetAPIBaseURL(), tokens,
		apiclient.WithTimeout(cfg.GetAPITimeout()),
		apiclient.WithLogger(l),
		apiclient.WithUserAgent(cfg.GetAppName()),
	)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}
	svc, err := backend.NewService(client)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	provider, err := newIdentityProvider(ctx, cfg, repo, key(storage.IdentitySessionKey), l, in, out)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}
	refresher, err := backend.NewTokenRefresher(client, provider)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}
	client.SetRefresher(refresher)

	acc := onboarding.New(ctx, repo, onboarding.WithKey(key(storage.OnboardingDataKey)), onboarding.WithLogger(l))
	policy := onboarding.PolicyLenient
	if cfg.GetOnboardingStrict() {
		policy = onboarding.PolicyStrict
	}
	controller, err := session.New(tokens, svc, provider, acc,
		session.WithLogger(l),
		session.WithUserCache(repo, key(storage.UserKey)),
		session.WithOnboardingPolicy(policy),
		session.WithRetry(apiclient.RetryOptions{
			MaxTries:        cfg.GetRetryMaxTries(),
			InitialInterval: cfg.GetRetryInitialInterval(),
		}),
	)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}
	client.AddTokenListener(controller)

	return &app{repo: repo, controller: controller, onboarding: acc}, nil
}

// newIdentityProvider uses Firebase when an API key is configured and an
// in-memory provider otherwise.
func newIdentityProvider(ctx context.Context, cfg config.Config, repo storage.Repo, sessionKey string, l zerolog.Logger, in io.Reader, out io.Writer) (identity.Provider, error) {
	if cfg.GetFirebaseAPIKey() == "" {
		l.Warn().Msg("FIREBASE_API_KEY is not set, using an in-memory identity provider")
		return providerfake.New(), nil
	}

	options := []firebase.Option{
		firebase.WithIdentityURL(cfg.GetFirebaseIdentityURL()),
		firebase.WithTokenURL(cfg.GetFirebaseTokenURL()),
		firebase.WithLogger(l),
		firebase.WithPersistence(repo, sessionKey),
	}
	authorize := terminalAuthorize(in, out)
	if oc := cfg.GetGoogleOAuth(); oc.Enabled() {
		src, err := oidcsource.New(ctx, oidcConfig(identity.ProviderGoogle, oc), authorize)
		if err != nil {
			return nil, err
		}
		options = append(options, firebase.WithGoogle(src))
	}
	if oc := cfg.GetAppleOAuth(); oc.Enabled() {
		src, err := oidcsource.New(ctx, oidcConfig(identity.ProviderApple, oc), authorize)
		if err != nil {
			return nil, err
		}
		options = append(options, firebase.WithApple(src))
	}
	provider, err := firebase.New(cfg.GetFirebaseAPIKey(), options...)
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func oidcConfig(providerID string, oc config.OAuthClient) oidcsource.Config {
	return oidcsource.Config{
		ProviderID:   providerID,
		Issuer:       oc.Issuer,
		ClientID:     oc.ClientID,
		ClientSecret: oc.ClientSecret,
		RedirectURL:  oc.RedirectURL,
		Scopes:       oc.Scopes,
	}
}

// terminalAuthorize prints the consent URL and reads back the redirect URL
// the browser landed on.
func terminalAuthorize(in io.Reader, out io.Writer) oidcsource.AuthorizeFunc {
	reader := bufio.NewReader(in)
	return func(ctx context.Context, authURL string) (string, string, error) {
		fmt.Fprintf(out, "Open this URL in a browser and sign in:\n\n  %s\n\nPaste the URL you were redirected to: ", authURL)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return "", "", identity.ErrCancelled
		}
		redirect, err := url.Parse(strings.TrimSpace(line))
		if err != nil {
			return "", "", fmt.Errorf("[terminalAuthorize] %w", err)
		}
		q := redirect.Query()
		if q.Get("error") != "" || q.Get("code") == "" {
			return "", "", identity.ErrCancelled
		}
		return q.Get("code"), q.Get("state"), nil
	}
}
