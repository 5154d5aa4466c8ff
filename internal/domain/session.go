package domain

// Session identifies who is acting. The zero value is the guest.
type Session struct {
	UserID string
}

// GuestSession is the session of an unauthenticated visitor.
//
//nolint:gochecknoglobals
var GuestSession = Session{}

// IsGuest reports whether no identity is authenticated.
func (s Session) IsGuest() bool {
	return s.UserID == ""
}
