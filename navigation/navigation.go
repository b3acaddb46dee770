// Package navigation decides which part of the app a session may see.
package navigation

import "github.com/jrsteele09/go-auth-client/session"

type Destination int

const (
	Loading Destination = iota
	AuthFlow
	Onboarding
	MainApp
)

func (d Destination) String() string {
	switch d {
	case Loading:
		return "loading"
	case AuthFlow:
		return "auth"
	case Onboarding:
		return "onboarding"
	case MainApp:
		return "main"
	default:
		return "unknown"
	}
}

// Route is re-evaluated on every session change. Guests go to the main app.
func Route(s session.Session) Destination {
	switch {
	case s.IsLoading:
		return Loading
	case !s.IsAuthenticated:
		return AuthFlow
	case s.User == nil:
		return MainApp
	case !s.User.IsOnboardingComplete:
		return Onboarding
	default:
		return MainApp
	}
}
