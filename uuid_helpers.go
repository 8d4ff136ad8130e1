package prolink

import "github.com/google/uuid"

// HasUserUUID reports whether ParseUserUUID will succeed.
func HasUserUUID(session *Session) bool {
	if session == nil {
		return false
	}
	_, err := ParseUserUUID(session)
	return err == nil
}

// ParseUserUUID returns the session user's id as a UUID.
func ParseUserUUID(session *Session) (uuid.UUID, error) {
	if session == nil || session.User == nil {
		return uuid.Nil, ErrNotAuthenticated
	}
	id, err := uuid.Parse(session.User.ID)
	if err != nil {
		return uuid.Nil, ErrNotAuthenticated
	}
	return id, nil
}
