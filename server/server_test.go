package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/server"
	"github.com/jrsteele09/go-auth-client/token/jwt"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/jrsteele09/go-auth-client/users/repofake"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	server *server.Server
	users  *repofake.FakeUserRepo
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	cfg, err := config.LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"ENV":               "TEST",
		"SERVER_JWT_SECRET": "test-secret",
		"SERVER_TOKEN_TTL":  "1h",
	}))
	require.NoError(t, err)

	repo := repofake.NewFakeUserRepo()
	s, err := server.New(cfg, repo, server.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	return &testFixture{server: s, users: repo}
}

func identityToken(t *testing.T, email string, exp time.Time) string {
	t.Helper()
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, jwtlib.MapClaims{
		"sub":   "idp-" + email,
		"email": email,
		"exp":   exp.Unix(),
	}).SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return raw
}

func (f *testFixture) do(t *testing.T, method, path, bearer string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func (f *testFixture) register(t *testing.T, email, role string) string {
	rec, out := f.do(t, http.MethodPost, server.RouteRegister, "", map[string]string{
		"name":          "Ann",
		"email":         email,
		"role":          role,
		"firebaseToken": identityToken(t, email, time.Now().Add(time.Hour)),
		"authProvider":  "email",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return out["token"].(string)
}

func TestServer_SeedsAdmin(t *testing.T) {
	f := setupTestFixture(t)
	admin, err := f.users.GetByEmail(server.DefaultAdminEmail)
	require.NoError(t, err)
	require.Equal(t, users.RoleAdmin, admin.Role)
}

func TestServer_Health(t *testing.T) {
	f := setupTestFixture(t)
	rec, out := f.do(t, http.MethodGet, server.RouteHealth, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", out["status"])
}

func TestServer_RegisterAndLogin(t *testing.T) {
	f := setupTestFixture(t)
	tok := f.register(t, "ann@example.com", "vendor")
	require.NotEmpty(t, tok)

	u, err := f.users.GetByEmail("ann@example.com")
	require.NoError(t, err)
	require.Equal(t, users.RoleVendor, u.Role)
	require.False(t, u.IsOnboardingComplete)

	t.Run("duplicate returns structured conflict", func(t *testing.T) {
		rec, out := f.do(t, http.MethodPost, server.RouteRegister, "", map[string]string{
			"name":          "Ann",
			"email":         "ann@example.com",
			"firebaseToken": identityToken(t, "ann@example.com", time.Now().Add(time.Hour)),
		})
		require.Equal(t, http.StatusConflict, rec.Code)
		require.Equal(t, "USER_EXISTS", out["code"])
		require.Equal(t, "User already exists", out["message"])
	})

	t.Run("login", func(t *testing.T) {
		rec, out := f.do(t, http.MethodPost, server.RouteLogin, "", map[string]string{
			"email":         "ann@example.com",
			"firebaseToken": identityToken(t, "ann@example.com", time.Now().Add(time.Hour)),
		})
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotEmpty(t, out["token"])
	})

	t.Run("login with someone else's identity token", func(t *testing.T) {
		rec, out := f.do(t, http.MethodPost, server.RouteLogin, "", map[string]string{
			"email":         "ann@example.com",
			"firebaseToken": identityToken(t, "eve@example.com", time.Now().Add(time.Hour)),
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, server.CodeInvalidIdentity, out["code"])
	})

	t.Run("login unknown user", func(t *testing.T) {
		rec, out := f.do(t, http.MethodPost, server.RouteLogin, "", map[string]string{
			"email":         "bob@example.com",
			"firebaseToken": identityToken(t, "bob@example.com", time.Now().Add(time.Hour)),
		})
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, server.CodeUserNotFound, out["code"])
	})
}

func TestServer_RegisterValidation(t *testing.T) {
	f := setupTestFixture(t)
	rec, out := f.do(t, http.MethodPost, server.RouteRegister, "", map[string]string{
		"email": "not-an-email",
		"role":  "owner",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	fields := out["errors"].(map[string]any)
	require.Contains(t, fields, "name")
	require.Contains(t, fields, "email")
	require.Contains(t, fields, "role")
	require.Contains(t, fields, "firebaseToken")
}

func TestServer_Profile(t *testing.T) {
	f := setupTestFixture(t)
	tok := f.register(t, "ann@example.com", "user")

	t.Run("session token", func(t *testing.T) {
		rec, out := f.do(t, http.MethodGet, server.RouteProfile, tok, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "ann@example.com", out["user"].(map[string]any)["email"])
	})

	t.Run("identity token", func(t *testing.T) {
		rec, _ := f.do(t, http.MethodGet, server.RouteProfile, identityToken(t, "ann@example.com", time.Now().Add(time.Hour)), nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		rec, out := f.do(t, http.MethodGet, server.RouteProfile, "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, server.CodeUnauthorized, out["code"])
	})

	t.Run("expired session token", func(t *testing.T) {
		jwt.NowTimeFunc = func() time.Time { return time.Now().Add(2 * time.Hour) }
		t.Cleanup(func() { jwt.NowTimeFunc = time.Now })
		rec, _ := f.do(t, http.MethodGet, server.RouteProfile, tok, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("identity token not accepted elsewhere", func(t *testing.T) {
		rec, _ := f.do(t, http.MethodPut, server.RouteUpdateRole, identityToken(t, "ann@example.com", time.Now().Add(time.Hour)), map[string]string{"newRole": "vendor"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestServer_UpdateRole(t *testing.T) {
	f := setupTestFixture(t)
	tok := f.register(t, "ann@example.com", "user")

	rec, out := f.do(t, http.MethodPut, server.RouteUpdateRole, tok, map[string]string{"newRole": "vendor"})
	require.Equal(t, http.StatusOK, rec.Code)
	user := out["user"].(map[string]any)
	require.Equal(t, "vendor", user["role"])
	require.Equal(t, false, user["isOnboardingComplete"])

	rec, _ = f.do(t, http.MethodPut, server.RouteUpdateRole, tok, map[string]string{"newRole": "admin"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestServer_CompleteRegistration(t *testing.T) {
	f := setupTestFixture(t)
	tok := f.register(t, "ann@example.com", "vendor")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("accountType", "vendor"))
	require.NoError(t, mw.WriteField("userDetails", `{"name":"Ann Vendor","phone":"555","email":"ann@example.com"}`))
	require.NoError(t, mw.WriteField("address", `{"city":"Lisbon"}`))
	part, err := mw.CreateFormFile("profileImage", "me.jpg")
	require.NoError(t, err)
	_, _ = part.Write([]byte("jpeg"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, server.RouteCompleteRegistration, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		Vendor *users.User `json:"vendor"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotNil(t, out.Vendor)
	require.True(t, out.Vendor.IsOnboardingComplete)
	require.Equal(t, "Ann Vendor", out.Vendor.Name)
	require.Equal(t, "Lisbon", out.Vendor.Address.City)
	require.True(t, strings.HasSuffix(out.Vendor.ProfileImage, "/me.jpg"))

	t.Run("json body rejected", func(t *testing.T) {
		rec, _ := f.do(t, http.MethodPost, server.RouteCompleteRegistration, tok, map[string]string{})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
