// Package backend wraps the application's auth REST endpoints.
package backend

import (
	"context"
	"errors"
	"net/http"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/users"
	pkgerrors "github.com/pkg/errors"
)

// Endpoint paths.
const (
	PathRegister             = "/auth/register"
	PathLogin                = "/auth/login"
	PathProfile              = "/auth/profile"
	PathUpdateRole           = "/auth/update-role"
	PathCompleteRegistration = "/auth/complete-registration"
)

// ErrAlreadyExists is returned by Register when the account already exists.
var ErrAlreadyExists = errors.New("account already exists")

// conflictCodes are the structured codes the backend uses for duplicates.
var conflictCodes = map[string]bool{
	"USER_EXISTS":    true,
	"ALREADY_EXISTS": true,
}

type RegisterRequest struct {
	Name          string         `json:"name"`
	Email         string         `json:"email"`
	Phone         string         `json:"phone,omitempty"`
	Role          users.RoleType `json:"role"`
	FirebaseToken string         `json:"firebaseToken"`
	AuthProvider  string         `json:"authProvider"`
	PhotoURL      string         `json:"profileImage,omitempty"`
}

type LoginRequest struct {
	Email         string `json:"email"`
	FirebaseToken string `json:"firebaseToken"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	User  *users.User `json:"user"`
	Token string      `json:"token"`
}

type profileResponse struct {
	User *users.User `json:"user"`
}

// completionResponse carries either a vendor or a user profile.
type completionResponse struct {
	Vendor *users.User `json:"vendor"`
	User   *users.User `json:"user"`
}

// Service calls the backend through the shared gateway client.
type Service struct {
	client *apiclient.Client
}

func NewService(client *apiclient.Client) (*Service, error) {
	if client == nil {
		return nil, errors.New("[NewService] api client is required")
	}
	return &Service{client: client}, nil
}

// Register creates the application account for an identity token. It
// returns ErrAlreadyExists (wrapping the gateway error) on a conflict.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := s.client.Post(ctx, PathRegister, req, &resp); err != nil {
		if isConflict(err) {
			return nil, errors.Join(ErrAlreadyExists, err)
		}
		return nil, err
	}
	return validAuth(&resp, "[Service.Register]")
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := s.client.Post(ctx, PathLogin, req, &resp); err != nil {
		return nil, err
	}
	return validAuth(&resp, "[Service.Login]")
}

// Profile fetches the profile for the stored session token.
func (s *Service) Profile(ctx context.Context) (*users.User, error) {
	return s.profile(ctx, &apiclient.Request{Method: http.MethodGet, Path: PathProfile})
}

// ProfileWithToken fetches the profile authenticating with bearer instead of
// the stored token. Used with an identity token when no session token exists.
func (s *Service) ProfileWithToken(ctx context.Context, bearer string) (*users.User, error) {
	return s.profile(ctx, &apiclient.Request{
		Method:      http.MethodGet,
		Path:        PathProfile,
		Header:      http.Header{"Authorization": {"Bearer " + bearer}},
		SkipRefresh: true,
	})
}

func (s *Service) profile(ctx context.Context, req *apiclient.Request) (*users.User, error) {
	var resp profileResponse
	if err := s.client.Do(ctx, req, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, pkgerrors.New("[Service.Profile] response has no user")
	}
	return resp.User, nil
}

func (s *Service) UpdateRole(ctx context.Context, role users.RoleType) (*users.User, error) {
	var resp profileResponse
	if err := s.client.Put(ctx, PathUpdateRole, map[string]users.RoleType{"newRole": role}, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, pkgerrors.New("[Service.UpdateRole] response has no user")
	}
	return resp.User, nil
}

// CompleteRegistration submits the onboarding payload and returns the
// updated profile, whichever of vendor or user the backend sent.
func (s *Service) CompleteRegistration(ctx context.Context, payload *apiclient.Multipart) (*users.User, error) {
	var resp completionResponse
	if err := s.client.Upload(ctx, PathCompleteRegistration, payload, &resp); err != nil {
		return nil, err
	}
	if resp.Vendor != nil {
		return resp.Vendor, nil
	}
	return resp.User, nil
}

func isConflict(err error) bool {
	apiErr, ok := apiclient.AsError(err)
	if !ok {
		return false
	}
	return apiErr.Status == http.StatusConflict || conflictCodes[apiErr.Code]
}

func validAuth(resp *AuthResponse, op string) (*AuthResponse, error) {
	if resp.User == nil || resp.Token == "" {
		return nil, pkgerrors.Errorf("%s response is missing user or token", op)
	}
	return resp, nil
}
