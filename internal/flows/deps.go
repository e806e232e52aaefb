package flows

import (
	"context"
	"time"
)

// Subject is the flow-local view of an authenticated principal.
type Subject struct {
	UserID    string
	FirstName string
	LastName  string
	Email     string
	Verified  bool
	// ExpiresAt is when the presented credential lapses. Only
	// RunAuthenticate fills it.
	ExpiresAt time.Time
}

// Issued is the flow-local view of a freshly issued credential.
type Issued struct {
	Value     string
	ExpiresAt time.Time
	// Session is true when the credential refers to server-side state.
	Session bool
}

// AuditFunc emits one audit event. err is mapped to a stable code by the
// caller; it is never written verbatim.
type AuditFunc func(ctx context.Context, eventType string, success bool, userID string, err error, metadata func() map[string]string)

// Deps groups flow dependency sets. The Engine builds this once at Build
// time and delegates request methods to the matching flow.
type Deps struct {
	Login        LoginDeps
	Logout       LogoutDeps
	Authenticate AuthenticateDeps
}

func noopAudit(context.Context, string, bool, string, error, func() map[string]string) {}

func noopLog(string, ...any) {}
