package users

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

// Repo stores user profiles for the development backend.
type Repo interface {
	// Create stores a new user, assigning an ID when empty. It fails with
	// ErrUserExists when the email is taken.
	Create(user *User) error
	Update(user *User) error
	Delete(id string) error
	GetByEmail(email string) (*User, error)
	GetByID(id string) (*User, error)
	List(offset, limit int) ([]*User, error)
}
