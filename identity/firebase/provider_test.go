package firebase_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-client/identity"
	"github.com/jrsteele09/go-auth-client/identity/firebase"
	"github.com/jrsteele09/go-auth-client/storage/repofake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeToolkit struct {
	mu        sync.Mutex
	now       time.Time
	passwords map[string]string
	calls     map[string]int
	lastIdp   map[string]any
	lastForm  map[string]string
}

func (f *fakeToolkit) idToken(t *testing.T, uid string, ttl time.Duration) string {
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, jwtlib.MapClaims{
		"sub": uid,
		"exp": f.now.Add(ttl).Unix(),
	}).SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return raw
}

type testFixture struct {
	toolkit  *fakeToolkit
	server   *httptest.Server
	repo     *repofake.FakeRepo
	provider *firebase.Provider
	now      time.Time
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func providerError(w http.ResponseWriter, code string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"code": 400, "message": code}})
}

func setupTestFixture(t *testing.T, options ...firebase.Option) *testFixture {
	t.Helper()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	tk := &fakeToolkit{now: now, passwords: map[string]string{}, calls: map[string]int{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.URL.Query().Get("key"))
		method := strings.TrimPrefix(r.URL.Path, "/v1/accounts:")
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		tk.mu.Lock()
		defer tk.mu.Unlock()
		tk.calls[method]++

		switch method {
		case "signUp":
			email := body["email"].(string)
			if _, ok := tk.passwords[email]; ok {
				providerError(w, "EMAIL_EXISTS")
				return
			}
			tk.passwords[email] = body["password"].(string)
			writeJSON(w, 200, map[string]any{"localId": "uid-" + email, "email": email, "idToken": tk.idToken(t, "uid-"+email, time.Hour), "refreshToken": "rt-1", "expiresIn": "3600"})
		case "update":
			writeJSON(w, 200, map[string]any{"displayName": body["displayName"]})
		case "signInWithPassword":
			email := body["email"].(string)
			pw, ok := tk.passwords[email]
			switch {
			case !ok:
				providerError(w, "EMAIL_NOT_FOUND")
			case pw != body["password"]:
				providerError(w, "INVALID_PASSWORD")
			default:
				writeJSON(w, 200, map[string]any{"localId": "uid-" + email, "email": email, "idToken": tk.idToken(t, "uid-"+email, time.Hour), "refreshToken": "rt-1", "expiresIn": "3600"})
			}
		case "lookup":
			writeJSON(w, 200, map[string]any{"users": []map[string]any{{"emailVerified": true, "photoUrl": "https://img/p.png"}}})
		case "signInWithIdp":
			tk.lastIdp = body
			writeJSON(w, 200, map[string]any{"localId": "g-1", "email": "g@example.com", "displayName": "Gee", "providerId": "google.com", "idToken": tk.idToken(t, "g-1", time.Hour), "refreshToken": "rt-g", "expiresIn": "3600"})
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/v1/token", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		tk.mu.Lock()
		defer tk.mu.Unlock()
		tk.calls["token"]++
		tk.lastForm = map[string]string{"grant_type": r.PostForm.Get("grant_type"), "refresh_token": r.PostForm.Get("refresh_token")}
		if r.PostForm.Get("refresh_token") == "revoked" {
			providerError(w, "INVALID_REFRESH_TOKEN")
			return
		}
		writeJSON(w, 200, map[string]any{"id_token": tk.idToken(t, "refreshed", time.Hour), "refresh_token": "rt-2", "expires_in": "3600"})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	f := &testFixture{toolkit: tk, server: server, repo: repofake.NewFakeRepo(), now: now}
	opts := append([]firebase.Option{
		firebase.WithIdentityURL(server.URL + "/v1"),
		firebase.WithTokenURL(server.URL + "/v1"),
		firebase.WithLogger(zerolog.Nop()),
		firebase.WithNowTime(func() time.Time { return f.now }),
		firebase.WithPersistence(f.repo, "identity"),
	}, options...)
	p, err := firebase.New("test-key", opts...)
	require.NoError(t, err)
	f.provider = p
	return f
}

func (f *testFixture) calls(method string) int {
	f.toolkit.mu.Lock()
	defer f.toolkit.mu.Unlock()
	return f.toolkit.calls[method]
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := firebase.New("")
	require.Error(t, err)
}

func TestProvider_SignUpAndSignIn(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	_, err := f.provider.SignIn(ctx, "ann@example.com", "pw")
	require.ErrorIs(t, err, identity.ErrUserNotFound)

	acct, err := f.provider.SignUp(ctx, "ann@example.com", "Secret1!", "Ann")
	require.NoError(t, err)
	require.Equal(t, "uid-ann@example.com", acct.UID)
	require.Equal(t, "Ann", acct.DisplayName)
	require.Equal(t, 1, f.calls("update"))

	_, err = f.provider.SignUp(ctx, "ann@example.com", "Secret1!", "Ann")
	require.ErrorIs(t, err, identity.ErrEmailInUse)

	_, err = f.provider.SignIn(ctx, "ann@example.com", "wrong")
	require.ErrorIs(t, err, identity.ErrInvalidCredentials)

	acct, err = f.provider.SignIn(ctx, "ann@example.com", "Secret1!")
	require.NoError(t, err)
	require.True(t, acct.EmailVerified)
	require.Equal(t, identity.ProviderPassword, acct.ProviderID)

	current, ok := f.provider.CurrentUser()
	require.True(t, ok)
	require.Equal(t, acct, current)
}

func TestProvider_IDTokenCachingAndRefresh(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	_, err := f.provider.IDToken(ctx, false)
	require.ErrorIs(t, err, identity.ErrNoCurrentUser)

	_, err = f.provider.SignUp(ctx, "ann@example.com", "Secret1!", "")
	require.NoError(t, err)

	first, err := f.provider.IDToken(ctx, false)
	require.NoError(t, err)
	again, err := f.provider.IDToken(ctx, false)
	require.NoError(t, err)
	require.Equal(t, first, again)
	require.Zero(t, f.calls("token"))

	t.Run("forced", func(t *testing.T) {
		forced, err := f.provider.IDToken(ctx, true)
		require.NoError(t, err)
		require.NotEqual(t, first, forced)
		require.Equal(t, 1, f.calls("token"))
		require.Equal(t, "rt-1", f.toolkit.lastForm["refresh_token"])
		require.Equal(t, "refresh_token", f.toolkit.lastForm["grant_type"])
	})

	t.Run("near expiry", func(t *testing.T) {
		f.now = f.now.Add(59*time.Minute + 30*time.Second)
		_, err := f.provider.IDToken(ctx, false)
		require.NoError(t, err)
		require.Equal(t, 2, f.calls("token"))
		require.Equal(t, "rt-2", f.toolkit.lastForm["refresh_token"])
	})
}

func TestProvider_PersistenceAcrossInstances(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	_, err := f.provider.SignUp(ctx, "ann@example.com", "Secret1!", "")
	require.NoError(t, err)

	restarted, err := firebase.New("test-key",
		firebase.WithIdentityURL(f.server.URL+"/v1"),
		firebase.WithTokenURL(f.server.URL+"/v1"),
		firebase.WithLogger(zerolog.Nop()),
		firebase.WithPersistence(f.repo, "identity"),
	)
	require.NoError(t, err)

	acct, ok := restarted.CurrentUser()
	require.True(t, ok)
	require.Equal(t, "ann@example.com", acct.Email)

	tok, err := restarted.IDToken(ctx, false)
	require.NoError(t, err)
	require.NotEmpty(t, tok)
	require.Equal(t, 1, f.calls("token"))

	require.NoError(t, restarted.SignOut(ctx))
	_, ok, err = f.repo.Get(ctx, "identity")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestProvider_RevokedRefreshToken(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	require.NoError(t, f.repo.Set(ctx, "identity", `{"account":{"uid":"u"},"refreshToken":"revoked"}`))

	_, err := f.provider.IDToken(ctx, false)
	require.ErrorIs(t, err, identity.ErrNoCurrentUser)
}

type staticSource struct {
	cred identity.FederatedCredential
	err  error
}

func (s staticSource) Credential(context.Context) (identity.FederatedCredential, error) {
	return s.cred, s.err
}

func TestProvider_SignInWithGoogle(t *testing.T) {
	ctx := context.Background()

	t.Run("not configured", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.provider.SignInWithApple(ctx)
		require.ErrorIs(t, err, identity.ErrProviderDisabled)
	})

	t.Run("cancelled", func(t *testing.T) {
		f := setupTestFixture(t, firebase.WithGoogle(staticSource{err: identity.ErrCancelled}))
		_, err := f.provider.SignInWithGoogle(ctx)
		require.ErrorIs(t, err, identity.ErrCancelled)
		require.Zero(t, f.calls("signInWithIdp"))
	})

	t.Run("exchanges provider id token", func(t *testing.T) {
		f := setupTestFixture(t, firebase.WithGoogle(staticSource{cred: identity.FederatedCredential{IDToken: "google-id-token"}}))
		acct, err := f.provider.SignInWithGoogle(ctx)
		require.NoError(t, err)
		require.Equal(t, identity.ProviderGoogle, acct.ProviderID)
		require.Equal(t, "g@example.com", acct.Email)
		require.Contains(t, f.toolkit.lastIdp["postBody"], "id_token=google-id-token")
		require.Contains(t, f.toolkit.lastIdp["postBody"], "providerId=google.com")
	})
}
