package authgate

import (
	"context"
	"errors"

	internalflows "github.com/MrEthical07/authgate/internal/flows"
	"github.com/MrEthical07/authgate/internal/rate"
)

// loginThrottle adapts the limiter to the login flow. A limiter outage
// lets logins through and is logged.
func (e *Engine) loginThrottle() internalflows.LoginThrottle {
	if e.throttle == nil {
		return internalflows.LoginThrottle{}
	}

	return internalflows.LoginThrottle{
		Allow: func(ctx context.Context, username string) bool {
			err := e.throttle.Check(ctx, username, clientIPFromContext(ctx))
			switch {
			case err == nil:
				return true
			case errors.Is(err, rate.ErrRateLimited):
				return false
			default:
				e.logger.Warn("authgate: login throttle check failed", "error", err)
				return true
			}
		},
		Failure: func(ctx context.Context, username string) {
			if err := e.throttle.RecordFailure(ctx, username, clientIPFromContext(ctx)); err != nil {
				e.logger.Warn("authgate: login throttle record failed", "error", err)
			}
		},
		Reset: func(ctx context.Context, username string) {
			if err := e.throttle.Reset(ctx, username); err != nil {
				e.logger.Warn("authgate: login throttle reset failed", "error", err)
			}
		},
	}
}

// LoginAttempts returns the failed-login count for username in the current
// window. It is zero when throttling is disabled.
func (e *Engine) LoginAttempts(ctx context.Context, username string) (int, error) {
	if e == nil || e.strategy == nil {
		return 0, ErrEngineNotReady
	}
	if e.throttle == nil {
		return 0, nil
	}
	return e.throttle.Attempts(ctx, username)
}
