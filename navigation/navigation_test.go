package navigation_test

import (
	"testing"

	"github.com/jrsteele09/go-auth-client/navigation"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/stretchr/testify/require"
)

func TestRoute(t *testing.T) {
	vendor := &users.User{ID: "v", Role: users.RoleVendor}
	onboarded := &users.User{ID: "u", Role: users.RoleUser, IsOnboardingComplete: true}

	tests := []struct {
		name    string
		session session.Session
		want    navigation.Destination
	}{
		{"loading wins", session.Session{IsLoading: true, IsAuthenticated: true, User: onboarded}, navigation.Loading},
		{"signed out", session.Session{}, navigation.AuthFlow},
		{"signed out with error", session.Session{Error: "bad password"}, navigation.AuthFlow},
		{"guest", session.Session{IsAuthenticated: true}, navigation.MainApp},
		{"vendor mid onboarding", session.Session{IsAuthenticated: true, User: vendor, Token: "t"}, navigation.Onboarding},
		{"onboarded", session.Session{IsAuthenticated: true, User: onboarded, Token: "t"}, navigation.MainApp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, navigation.Route(tt.session))
		})
	}
}

func TestDestinationString(t *testing.T) {
	require.Equal(t, "onboarding", navigation.Onboarding.String())
	require.Equal(t, "unknown", navigation.Destination(42).String())
}
