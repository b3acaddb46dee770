package users

import (
	"fmt"
	"strings"

	"github.com/jrsteele09/go-auth-client/internal/utils"
)

// RoleType is the account role the backend assigns to a user.
type RoleType string

const (
	RoleUser   RoleType = "user"   // Browses and buys
	RoleVendor RoleType = "vendor" // Sells; must finish onboarding before using the app
	RoleAdmin  RoleType = "admin"
)

// ParseRole converts s into a RoleType.
func ParseRole(s string) (RoleType, error) {
	switch r := RoleType(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleUser, RoleVendor, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

func (r RoleType) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

type Address struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

// User is the application profile returned by the backend.
type User struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Email                string   `json:"email"`
	Phone                string   `json:"phone,omitempty"`
	Role                 RoleType `json:"role"`
	IsVerified           bool     `json:"isVerified"`
	ProfileImage         string   `json:"profileImage,omitempty"`
	Address              *Address `json:"address,omitempty"`
	IsOnboardingComplete bool     `json:"isOnboardingComplete"`
}

// Clone returns a deep copy of u, or nil when u is nil.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Address = utils.Clone(u.Address)
	return &c
}

func (u *User) IsVendor() bool {
	return u != nil && u.Role == RoleVendor
}

// Patch is a partial User. Nil fields are left untouched by Apply.
type Patch struct {
	Name                 *string   `json:"name,omitempty"`
	Email                *string   `json:"email,omitempty"`
	Phone                *string   `json:"phone,omitempty"`
	Role                 *RoleType `json:"role,omitempty"`
	IsVerified           *bool     `json:"isVerified,omitempty"`
	ProfileImage         *string   `json:"profileImage,omitempty"`
	Address              *Address  `json:"address,omitempty"`
	IsOnboardingComplete *bool     `json:"isOnboardingComplete,omitempty"`
}

// Apply shallow-merges p into a copy of u. The ID is never patched.
func (p Patch) Apply(u *User) *User {
	if u == nil {
		return nil
	}
	out := u.Clone()
	out.Name = utils.ValueOr(p.Name, out.Name)
	out.Email = utils.ValueOr(p.Email, out.Email)
	out.Phone = utils.ValueOr(p.Phone, out.Phone)
	out.Role = utils.ValueOr(p.Role, out.Role)
	out.IsVerified = utils.ValueOr(p.IsVerified, out.IsVerified)
	out.ProfileImage = utils.ValueOr(p.ProfileImage, out.ProfileImage)
	if p.Address != nil {
		out.Address = utils.Clone(p.Address)
	}
	out.IsOnboardingComplete = utils.ValueOr(p.IsOnboardingComplete, out.IsOnboardingComplete)
	return out
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p == Patch{}
}
