package core

// Identity describes the current caller. It is derived once per request by
// the auth middleware and passed explicitly into every service call; it is
// never stored as shared process state.
type Identity struct {
	UserID        uint
	Username      string
	Authenticated bool
	Privileged    bool
}

// Anonymous is the identity of an unauthenticated caller.
var Anonymous = Identity{}

// IdentityFor builds the identity for an application user.
func IdentityFor(u User) Identity {
	return Identity{
		UserID:        u.ID,
		Username:      u.Username,
		Authenticated: true,
		Privileged:    u.Privileged(),
	}
}
