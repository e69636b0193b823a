package core

// Identity is an already authenticated user as handed over by the transport.
type Identity struct {
	UserID   int64
	Username string
	IsAdmin  bool
}

// Session binds a live transport connection to an identity.
type Session struct {
	ConnID   string
	UserID   int64
	Username string
	IsAdmin  bool
}

// NewSession constructs a session for connID.
func NewSession(connID string, id Identity) Session {
	return Session{
		ConnID:   connID,
		UserID:   id.UserID,
		Username: id.Username,
		IsAdmin:  id.IsAdmin,
	}
}

// Member is the public view of a session used in user lists.
type Member struct {
	Username string
	IsAdmin  bool
}
