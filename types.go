package authgate

import (
	"context"
	"time"

	"github.com/MrEthical07/authgate/session"
)

// Principal is the authenticated identity. It is only ever built from a
// user store lookup, never from client input.
type Principal struct {
	UserID    string
	FirstName string
	LastName  string
	Email     string
	Verified  bool
}

// Summary returns the public projection sent to clients after login.
func (p Principal) Summary() UserSummary {
	return UserSummary{
		UserID:    p.UserID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
	}
}

// UserSummary is the userDto body returned by the login endpoint.
type UserSummary struct {
	UserID    string `json:"userId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// UserStore is the external source of principals. Implementations return
// ErrUserNotFound for unknown usernames or ids and ErrInvalidCredentials for
// a wrong password. Any other error is treated as a backend failure.
//
// VerifyCredentials must not reveal through timing whether the username
// exists.
type UserStore interface {
	VerifyCredentials(ctx context.Context, username, password string) (Principal, error)
	FindByID(ctx context.Context, userID string) (Principal, error)
}

// SessionStore persists server-side sessions for the SESSION strategy.
// session.Store satisfies it.
type SessionStore interface {
	Create(ctx context.Context, principalID string) (*session.Session, error)
	Get(ctx context.Context, sessionID string) (*session.Session, error)
	Delete(ctx context.Context, sessionID string) error
}

// Credential is the opaque value handed to the client: a signed token or a
// session id.
type Credential struct {
	Value     string
	ExpiresAt time.Time
}

// LoginResult is returned by Engine.Login.
type LoginResult struct {
	User       UserSummary
	Credential Credential
}

// AuthContext is the per-request authentication outcome. Principal is set
// iff the request was admitted; Err is set iff it was rejected.
type AuthContext struct {
	Strategy  Strategy
	Principal *Principal
	Err       error
	// ExpiresAt is when the admitted credential lapses, including any
	// sliding refresh done while admitting this request.
	ExpiresAt time.Time
}

// Authenticated reports whether the request carries a principal.
func (a AuthContext) Authenticated() bool {
	return a.Principal != nil && a.Err == nil
}
