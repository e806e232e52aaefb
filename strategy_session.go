package authgate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authgate/session"
)

type sessionStrategy struct {
	store SessionStore
	users UserStore
}

func (s *sessionStrategy) kind() Strategy { return StrategySession }

func (s *sessionStrategy) issue(ctx context.Context, p Principal) (Credential, error) {
	sess, err := s.store.Create(ctx, p.UserID)
	if err != nil {
		return Credential{}, sessionStoreError(err)
	}
	return Credential{
		Value:     sess.SessionID,
		ExpiresAt: time.Unix(sess.ExpiresAt, 0),
	}, nil
}

func (s *sessionStrategy) verify(ctx context.Context, credential string) (Principal, time.Time, error) {
	if credential == "" {
		return Principal{}, time.Time{}, ErrSessionNotFound
	}

	// With sliding expiration Get has already pushed ExpiresAt forward.
	sess, err := s.store.Get(ctx, credential)
	if err != nil {
		return Principal{}, time.Time{}, sessionStoreError(err)
	}

	p, err := resolvePrincipal(ctx, s.users, sess.PrincipalID)
	if err != nil {
		if errors.Is(err, ErrPrincipalGone) {
			return Principal{}, time.Time{}, fmt.Errorf("%w: %w", ErrSessionNotFound, err)
		}
		return Principal{}, time.Time{}, err
	}
	return p, time.Unix(sess.ExpiresAt, 0), nil
}

func (s *sessionStrategy) teardown(ctx context.Context, credential string) error {
	if credential == "" {
		return nil
	}
	if err := s.store.Delete(ctx, credential); err != nil {
		return sessionStoreError(err)
	}
	return nil
}

func sessionStoreError(err error) error {
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, ErrSessionNotFound):
		return ErrSessionNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrSessionStoreUnavailable, err)
	}
}
