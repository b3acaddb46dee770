package session

import (
	"errors"
	"strings"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/backend"
	"github.com/jrsteele09/go-auth-client/identity"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/onboarding"
)

var messages = []struct {
	err error
	msg string
}{
	{backend.ErrAlreadyExists, "An account with this email already exists."},
	{autherrors.ErrGuestSession, "Sign in to use this feature."},
	{autherrors.ErrNotAuthenticated, "Please sign in again."},
	{onboarding.ErrNoData, "Complete the registration steps before submitting."},
}

// userMessage maps err to the text stored in Session.Error.
func userMessage(err error) string {
	if msg, ok := identity.UserMessage(err); ok {
		return msg
	}
	var incomplete *onboarding.IncompleteError
	if errors.As(err, &incomplete) {
		return "Please complete the missing fields: " + strings.Join(incomplete.MissingFields, ", ") + "."
	}
	for _, m := range messages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return apiclient.MessageFor(err)
}
