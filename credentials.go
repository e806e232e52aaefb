package authgate

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// credentialVerifier turns a username/password pair into a Principal. The
// user store owns hashing; this layer only collapses its outcomes into the
// public error set.
type credentialVerifier struct {
	users UserStore
}

func (v credentialVerifier) verify(ctx context.Context, username, password string) (Principal, error) {
	if v.users == nil {
		return Principal{}, ErrEngineNotReady
	}
	if strings.TrimSpace(username) == "" || password == "" {
		return Principal{}, ErrAuthenticationFailed
	}

	p, err := v.users.VerifyCredentials(ctx, username, password)
	switch {
	case err == nil:
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrInvalidCredentials):
		return Principal{}, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	case errors.Is(err, ErrAccountNotVerified):
		return Principal{}, err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Principal{}, err
	default:
		return Principal{}, fmt.Errorf("%w: %v", ErrUserStoreUnavailable, err)
	}

	if p.UserID == "" {
		return Principal{}, fmt.Errorf("%w: store returned an empty user id", ErrUserStoreUnavailable)
	}
	if !p.Verified {
		return Principal{}, ErrAccountNotVerified
	}
	return p, nil
}

// resolvePrincipal reloads the principal named by a verified credential.
func resolvePrincipal(ctx context.Context, users UserStore, userID string) (Principal, error) {
	p, err := users.FindByID(ctx, userID)
	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, ErrUserNotFound):
		return Principal{}, fmt.Errorf("%w: %w", ErrPrincipalGone, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Principal{}, err
	default:
		return Principal{}, fmt.Errorf("%w: %v", ErrUserStoreUnavailable, err)
	}
}
