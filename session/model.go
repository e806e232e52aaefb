package session

import "time"

// Session is the server-held record behind a session cookie. Timestamps are
// unix seconds.
type Session struct {
	SessionID   string
	PrincipalID string
	CreatedAt   int64
	ExpiresAt   int64
}

// Expired reports whether the session's absolute lifetime has passed at now.
func (s *Session) Expired(now time.Time) bool {
	return now.Unix() >= s.ExpiresAt
}

// ExpiresAtTime returns ExpiresAt as a time.Time.
func (s *Session) ExpiresAtTime() time.Time {
	return time.Unix(s.ExpiresAt, 0)
}
