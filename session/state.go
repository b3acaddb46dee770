package session

import "github.com/jrsteele09/go-auth-client/users"

// Session is the flag view of the controller state that callers render from.
type Session struct {
	IsAuthenticated bool
	IsLoading       bool
	User            *users.User // nil before sign-in and in guest mode
	Token           string      // empty when not authenticated and in guest mode
	Error           string
}

// IsGuest reports the authenticated-without-user variant.
func (s Session) IsGuest() bool {
	return s.IsAuthenticated && s.User == nil
}

// state is the tagged internal representation. Only the types below
// implement it.
type state interface {
	stateName() string
}

type unauthenticated struct{}

type loading struct {
	prior state
}

type authenticated struct {
	user  *users.User
	token string
}

type guest struct{}

// errorOverlay decorates a settled state with the last failure message.
type errorOverlay struct {
	of      state
	message string
}

func (unauthenticated) stateName() string { return "unauthenticated" }
func (loading) stateName() string         { return "loading" }
func (authenticated) stateName() string   { return "authenticated" }
func (guest) stateName() string           { return "guest" }
func (errorOverlay) stateName() string    { return "error" }

type action interface {
	actionName() string
}

// started marks an operation in flight.
type started struct{}

type signedIn struct {
	user  *users.User
	token string
}

// signedOut ends the session. A non-empty message is kept as a
// non-blocking error.
type signedOut struct {
	message string
}

type guestEntered struct{}

type failed struct {
	message string
}

type errorCleared struct{}

// userReplaced installs the server's copy of the profile.
type userReplaced struct {
	user *users.User
}

type userPatched struct {
	patch users.Patch
}

type tokenRefreshed struct {
	token string
}

type tokenRevoked struct{}

func (started) actionName() string        { return "started" }
func (signedIn) actionName() string       { return "signed_in" }
func (signedOut) actionName() string      { return "signed_out" }
func (guestEntered) actionName() string   { return "guest_entered" }
func (failed) actionName() string         { return "failed" }
func (errorCleared) actionName() string   { return "error_cleared" }
func (userReplaced) actionName() string   { return "user_replaced" }
func (userPatched) actionName() string    { return "user_patched" }
func (tokenRefreshed) actionName() string { return "token_refreshed" }
func (tokenRevoked) actionName() string   { return "token_revoked" }

// reduce returns the state that follows s after a. It has no side effects.
func reduce(s state, a action) state {
	switch a := a.(type) {
	case started:
		if _, ok := s.(loading); ok {
			return s
		}
		return loading{prior: s}
	case signedIn:
		if a.user == nil || a.token == "" {
			return errorOverlay{of: base(s), message: "The server returned an incomplete session."}
		}
		return authenticated{user: a.user.Clone(), token: a.token}
	case signedOut:
		if a.message != "" {
			return errorOverlay{of: unauthenticated{}, message: a.message}
		}
		return unauthenticated{}
	case guestEntered:
		return guest{}
	case failed:
		return errorOverlay{of: base(s), message: a.message}
	case errorCleared:
		return clearError(s)
	case userReplaced:
		b := base(s)
		if auth, ok := b.(authenticated); ok && a.user != nil {
			return authenticated{user: a.user.Clone(), token: auth.token}
		}
		return b
	case userPatched:
		return mapBase(s, func(b state) state {
			if auth, ok := b.(authenticated); ok {
				return authenticated{user: a.patch.Apply(auth.user), token: auth.token}
			}
			return b
		})
	case tokenRefreshed:
		return mapBase(s, func(b state) state {
			if auth, ok := b.(authenticated); ok && a.token != "" {
				return authenticated{user: auth.user, token: a.token}
			}
			return b
		})
	case tokenRevoked:
		return mapBase(s, func(b state) state {
			if _, ok := b.(authenticated); ok {
				return unauthenticated{}
			}
			return b
		})
	}
	return s
}

// base strips the loading and error decorations.
func base(s state) state {
	switch st := s.(type) {
	case loading:
		return base(st.prior)
	case errorOverlay:
		return base(st.of)
	}
	return s
}

// mapBase replaces the undecorated state, keeping loading and error.
func mapBase(s state, fn func(state) state) state {
	switch st := s.(type) {
	case loading:
		return loading{prior: mapBase(st.prior, fn)}
	case errorOverlay:
		return errorOverlay{of: mapBase(st.of, fn), message: st.message}
	}
	return fn(s)
}

func clearError(s state) state {
	switch st := s.(type) {
	case loading:
		return loading{prior: clearError(st.prior)}
	case errorOverlay:
		return clearError(st.of)
	}
	return s
}

func flags(s state) Session {
	switch st := s.(type) {
	case loading:
		out := flags(st.prior)
		out.IsLoading = true
		return out
	case errorOverlay:
		out := flags(st.of)
		out.Error = st.message
		return out
	case authenticated:
		return Session{IsAuthenticated: true, User: st.user.Clone(), Token: st.token}
	case guest:
		return Session{IsAuthenticated: true}
	}
	return Session{}
}
