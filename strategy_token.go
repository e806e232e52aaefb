package authgate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authgate/jwt"
)

type tokenStrategy struct {
	tokens *jwt.Manager
	users  UserStore
}

func (s *tokenStrategy) kind() Strategy { return StrategyToken }

func (s *tokenStrategy) issue(_ context.Context, p Principal) (Credential, error) {
	tok, err := s.tokens.Issue(jwt.UserDto{
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
		UserID:    p.UserID,
	})
	if err != nil {
		if errors.Is(err, jwt.ErrSigningUnavailable) {
			return Credential{}, ErrSigningUnavailable
		}
		return Credential{}, fmt.Errorf("%w: %v", ErrSigningUnavailable, err)
	}
	return Credential{Value: tok.Value, ExpiresAt: tok.ExpiresAt}, nil
}

func (s *tokenStrategy) verify(ctx context.Context, credential string) (Principal, time.Time, error) {
	if credential == "" {
		return Principal{}, time.Time{}, ErrUserNotAuthenticated
	}

	claims, err := s.tokens.Parse(credential)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, time.Time{}, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return Principal{}, time.Time{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	p, err := resolvePrincipal(ctx, s.users, claims.User.UserID)
	if err != nil {
		return Principal{}, time.Time{}, err
	}
	return p, claims.ExpiresAt.Time, nil
}

// Tokens are self-contained; logout only clears the client cookie.
func (s *tokenStrategy) teardown(context.Context, string) error { return nil }
