package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/jrsteele09/go-auth-client/token/jwt"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/labstack/echo/v4"
)

type registerRequest struct {
	Name          string `json:"name" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	Phone         string `json:"phone"`
	Role          string `json:"role" validate:"omitempty,oneof=user vendor admin"`
	FirebaseToken string `json:"firebaseToken" validate:"required"`
	AuthProvider  string `json:"authProvider"`
	ProfileImage  string `json:"profileImage"`
}

type loginRequest struct {
	Email         string `json:"email" validate:"required,email"`
	FirebaseToken string `json:"firebaseToken" validate:"required"`
}

type updateRoleRequest struct {
	NewRole string `json:"newRole" validate:"required,oneof=user vendor"`
}

type authResponse struct {
	User  *users.User `json:"user"`
	Token string      `json:"token"`
}

type userResponse struct {
	User *users.User `json:"user"`
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return newAPIError(http.StatusBadRequest, CodeValidation, "invalid payload")
	}
	return c.Validate(req)
}

// verifyIdentity checks the identity token belongs to email.
func verifyIdentity(rawToken, email string) error {
	claims, err := inspectIdentityToken(rawToken)
	if err != nil {
		return newAPIError(http.StatusUnauthorized, CodeInvalidIdentity, "invalid identity token")
	}
	if !strings.EqualFold(claims.Email, email) {
		return newAPIError(http.StatusUnauthorized, CodeInvalidIdentity, "identity token does not match email")
	}
	return nil
}

func (s *Server) issueSession(c echo.Context, status int, user *users.User) error {
	tok, err := s.tokens.CreateSessionToken(jwt.Subject{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  string(user.Role),
	})
	if err != nil {
		return err
	}
	return c.JSON(status, authResponse{User: user, Token: tok})
}

func (s *Server) RegisterHandler(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := verifyIdentity(req.FirebaseToken, req.Email); err != nil {
		return err
	}

	role := users.RoleUser
	if req.Role != "" {
		role = users.RoleType(req.Role)
	}
	user := &users.User{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Role:         role,
		ProfileImage: req.ProfileImage,
		// Social providers have already verified the address.
		IsVerified:           req.AuthProvider == "google" || req.AuthProvider == "apple",
		IsOnboardingComplete: role != users.RoleVendor,
	}
	if err := s.users.Create(user); err != nil {
		return err
	}
	s.log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("user registered")
	return s.issueSession(c, http.StatusCreated, user)
}

func (s *Server) LoginHandler(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := verifyIdentity(req.FirebaseToken, req.Email); err != nil {
		return err
	}
	user, err := s.users.GetByEmail(req.Email)
	if err != nil {
		return err
	}
	return s.issueSession(c, http.StatusOK, user)
}

func (s *Server) ProfileHandler(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{User: user})
}

// UpdateRoleHandler switches the account role. Becoming a vendor requires
// onboarding again unless the account already completed it as a vendor.
func (s *Server) UpdateRoleHandler(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req updateRoleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	newRole := users.RoleType(req.NewRole)
	switch {
	case newRole == users.RoleVendor && user.Role != users.RoleVendor:
		user.IsOnboardingComplete = false
	case newRole != users.RoleVendor:
		user.IsOnboardingComplete = true
	}
	user.Role = newRole
	if err := s.users.Update(user); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{User: user})
}

type onboardingUserDetails struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// CompleteRegistrationHandler accepts the onboarding multipart payload.
// Vendors get {"vendor": ...}, everyone else {"user": ...}.
func (s *Server) CompleteRegistrationHandler(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	form, err := c.MultipartForm()
	if err != nil {
		return newAPIError(http.StatusBadRequest, CodeValidation, "expected multipart/form-data")
	}

	accountType := firstValue(form.Value, "accountType")
	if accountType == "" {
		apiErr := newAPIError(http.StatusUnprocessableEntity, CodeValidation, "request validation failed")
		apiErr.Fields = map[string]string{"accountType": "accountType is required"}
		return apiErr
	}

	if raw := firstValue(form.Value, "userDetails"); raw != "" {
		var details onboardingUserDetails
		if err := json.Unmarshal([]byte(raw), &details); err != nil {
			return newAPIError(http.StatusBadRequest, CodeValidation, "userDetails is not valid JSON")
		}
		if details.Name != "" {
			user.Name = details.Name
		}
		if details.Phone != "" {
			user.Phone = details.Phone
		}
	}
	if raw := firstValue(form.Value, "address"); raw != "" {
		var addr users.Address
		if err := json.Unmarshal([]byte(raw), &addr); err != nil {
			return newAPIError(http.StatusBadRequest, CodeValidation, "address is not valid JSON")
		}
		user.Address = &addr
	}
	if files := form.File["profileImage"]; len(files) > 0 {
		user.ProfileImage = path.Join("/uploads", user.ID, path.Base(files[0].Filename))
	}

	if role, err := users.ParseRole(accountType); err == nil && role != users.RoleAdmin {
		user.Role = role
	}
	user.IsOnboardingComplete = true
	if err := s.users.Update(user); err != nil {
		return err
	}

	uploaded := 0
	for _, fh := range form.File {
		uploaded += len(fh)
	}
	s.log.Info().Str("user_id", user.ID).Int("files", uploaded).Msg(fmt.Sprintf("%s registration completed", user.Role))

	if user.Role == users.RoleVendor {
		return c.JSON(http.StatusOK, map[string]*users.User{"vendor": user})
	}
	return c.JSON(http.StatusOK, userResponse{User: user})
}

func firstValue(values map[string][]string, key string) string {
	if v := values[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}
