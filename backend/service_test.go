package backend_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/backend"
	"github.com/jrsteele09/go-auth-client/identity"
	"github.com/jrsteele09/go-auth-client/identity/providerfake"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/server"
	"github.com/jrsteele09/go-auth-client/storage/repofake"
	"github.com/jrsteele09/go-auth-client/token"
	"github.com/jrsteele09/go-auth-client/users"
	userfake "github.com/jrsteele09/go-auth-client/users/repofake"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/require"
)

const (
	email    = "ada@example.com"
	password = "correct horse"
)

type testFixture struct {
	ctx      context.Context
	tokens   *token.PersistentStore
	client   *apiclient.Client
	service  *backend.Service
	provider *providerfake.Provider
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	cfg, err := config.LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"ENV":               "TEST",
		"SERVER_JWT_SECRET": "backend-test-secret",
	}))
	require.NoError(t, err)
	srv, err := server.New(cfg, userfake.NewFakeUserRepo(), server.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	f := &testFixture{
		ctx:      context.Background(),
		tokens:   token.NewStore(repofake.NewFakeRepo(), token.WithLogger(zerolog.Nop())),
		provider: providerfake.New(),
	}
	f.client, err = apiclient.New(ts.URL, f.tokens, apiclient.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	f.service, err = backend.NewService(f.client)
	require.NoError(t, err)

	_, err = f.provider.AddAccount(email, password, "Ada")
	require.NoError(t, err)
	_, err = f.provider.SignIn(f.ctx, email, password)
	require.NoError(t, err)
	return f
}

func (f *testFixture) idToken(t *testing.T) string {
	t.Helper()
	tok, err := f.provider.IDToken(f.ctx, false)
	require.NoError(t, err)
	return tok
}

func (f *testFixture) register(t *testing.T, role users.RoleType) *backend.AuthResponse {
	t.Helper()
	resp, err := f.service.Register(f.ctx, backend.RegisterRequest{
		Name:          "Ada",
		Email:         email,
		Role:          role,
		FirebaseToken: f.idToken(t),
		AuthProvider:  "email",
	})
	require.NoError(t, err)
	require.NoError(t, f.tokens.Set(f.ctx, resp.Token))
	return resp
}

func TestNewService(t *testing.T) {
	_, err := backend.NewService(nil)
	require.Error(t, err)
}

func TestRegister(t *testing.T) {
	f := setupTestFixture(t)
	resp := f.register(t, users.RoleUser)
	require.Equal(t, email, resp.User.Email)
	require.NotEmpty(t, resp.Token)

	t.Run("conflict", func(t *testing.T) {
		_, err := f.service.Register(f.ctx, backend.RegisterRequest{
			Name: "Ada", Email: email, Role: users.RoleUser, FirebaseToken: f.idToken(t),
		})
		require.ErrorIs(t, err, backend.ErrAlreadyExists)
		apiErr, ok := apiclient.AsError(err)
		require.True(t, ok)
		require.Equal(t, http.StatusConflict, apiErr.Status)
		require.Equal(t, "USER_EXISTS", apiErr.Code)
	})

	t.Run("validation is not a conflict", func(t *testing.T) {
		_, err := f.service.Register(f.ctx, backend.RegisterRequest{Email: "not-an-email"})
		require.False(t, errors.Is(err, backend.ErrAlreadyExists))
		require.Equal(t, apiclient.KindValidation, apiclient.KindOf(err))
	})
}

func TestLoginAndProfile(t *testing.T) {
	f := setupTestFixture(t)
	registered := f.register(t, users.RoleUser)

	resp, err := f.service.Login(f.ctx, backend.LoginRequest{Email: email, FirebaseToken: f.idToken(t)})
	require.NoError(t, err)
	require.Equal(t, registered.User.ID, resp.User.ID)

	user, err := f.service.Profile(f.ctx)
	require.NoError(t, err)
	require.Equal(t, registered.User.ID, user.ID)

	t.Run("identity token instead of the stored token", func(t *testing.T) {
		require.NoError(t, f.tokens.Clear(f.ctx))
		user, err := f.service.ProfileWithToken(f.ctx, f.idToken(t))
		require.NoError(t, err)
		require.Equal(t, email, user.Email)
	})

	t.Run("identity token for another email", func(t *testing.T) {
		_, err := f.service.Login(f.ctx, backend.LoginRequest{Email: "nobody@example.com", FirebaseToken: f.idToken(t)})
		require.Equal(t, apiclient.KindAuth, apiclient.KindOf(err))
		apiErr, ok := apiclient.AsError(err)
		require.True(t, ok)
		require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	})
}

func TestUpdateRoleAndCompleteRegistration(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t, users.RoleUser)

	user, err := f.service.UpdateRole(f.ctx, users.RoleVendor)
	require.NoError(t, err)
	require.Equal(t, users.RoleVendor, user.Role)
	require.False(t, user.IsOnboardingComplete)

	user, err = f.service.CompleteRegistration(f.ctx, &apiclient.Multipart{
		Fields: map[string]string{
			"accountType": "vendor",
			"address":     `{"city":"Leeds"}`,
		},
		Files: []apiclient.FilePart{{Field: "documentImage", FileName: "doc.jpg", Content: []byte("jpeg")}},
	})
	require.NoError(t, err)
	require.True(t, user.IsOnboardingComplete)
	require.Equal(t, "Leeds", user.Address.City)
}

func TestTokenRefresher(t *testing.T) {
	t.Run("constructor", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := backend.NewTokenRefresher(nil, f.provider)
		require.Error(t, err)
		_, err = backend.NewTokenRefresher(f.client, nil)
		require.Error(t, err)
	})

	t.Run("stale token is replaced", func(t *testing.T) {
		f := setupTestFixture(t)
		registered := f.register(t, users.RoleUser)
		refresher, err := backend.NewTokenRefresher(f.client, f.provider)
		require.NoError(t, err)
		f.client.SetRefresher(refresher)

		require.NoError(t, f.tokens.Set(f.ctx, "stale"))
		user, err := f.service.Profile(f.ctx)
		require.NoError(t, err)
		require.Equal(t, registered.User.ID, user.ID)
		require.Equal(t, 1, f.provider.Calls(providerfake.OpForceToken))

		tok, err := f.tokens.Get(f.ctx)
		require.NoError(t, err)
		require.NotEqual(t, "stale", tok)
	})

	t.Run("signed out provider", func(t *testing.T) {
		f := setupTestFixture(t)
		refresher, err := backend.NewTokenRefresher(f.client, f.provider)
		require.NoError(t, err)
		require.NoError(t, f.provider.SignOut(f.ctx))

		_, err = refresher.Refresh(f.ctx)
		require.ErrorIs(t, err, identity.ErrNoCurrentUser)
	})
}
