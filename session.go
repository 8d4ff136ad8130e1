package prolink

import (
	"fmt"
	"time"
)

// User is the stable identity the backend issues at sign-up. The id
// and email are immutable for the life of the account.
type User struct {
	ID             string         `json:"id"`
	Email          string         `json:"email"`
	EmailConfirmed bool           `json:"email_confirmed"`
	CreatedAt      *time.Time     `json:"created_at,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Session is the backend-issued credential bundle mirrored locally.
// The backend SDK owns its lifetime; this package only reflects it.
type Session struct {
	AccessToken  string     `json:"access_token"`
	TokenType    string     `json:"token_type"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	User         *User      `json:"user,omitempty"`
}

// UserID returns the identity attached to the session, or "" when the
// session carries none.
func (s *Session) UserID() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}

// Expired reports whether the session's access token lifetime has
// passed at the given instant. Sessions without an expiry are treated
// as live; the backend invalidates them server side.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt == nil {
		return false
	}
	return !now.Before(*s.ExpiresAt)
}

func (s Session) String() string {
	expires := "<nil>"
	if s.ExpiresAt != nil {
		expires = s.ExpiresAt.Format(time.RFC1123)
	}
	return fmt.Sprintf("user=%s type=%s expires=%s", s.UserID(), s.TokenType, expires)
}
