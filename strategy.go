package authgate

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Strategy names one of the two mutually exclusive authentication modes.
// A deployment selects exactly one at startup.
type Strategy string

const (
	// StrategySession authenticates requests through a server-held session
	// looked up by an opaque cookie value.
	StrategySession Strategy = "SESSION"
	// StrategyToken authenticates requests through a self-contained signed
	// JWT carried in a cookie.
	StrategyToken Strategy = "TOKEN"
)

// legacyTokenName is the value older deployments used for StrategyToken.
const legacyTokenName = "JWT"

// ParseStrategy resolves the AUTHENTICATION_STRATEGY configuration value.
// Absent or unrecognised values return ErrUnsupportedStrategy; callers are
// expected to treat that as fatal and refuse to start.
func ParseStrategy(raw string) (Strategy, error) {
	switch strings.TrimSpace(raw) {
	case string(StrategySession):
		return StrategySession, nil
	case string(StrategyToken), legacyTokenName:
		return StrategyToken, nil
	case "":
		return "", fmt.Errorf("%w: value is not set", ErrUnsupportedStrategy)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedStrategy, raw)
	}
}

// Valid reports whether s is one of the supported strategies.
func (s Strategy) Valid() bool {
	return s == StrategySession || s == StrategyToken
}

func (s Strategy) String() string {
	return string(s)
}

// authStrategy is the closed capability set behind Engine. Exactly one
// implementation is selected in Builder.Build; request code never branches
// on the configured Strategy value.
type authStrategy interface {
	kind() Strategy
	issue(ctx context.Context, principal Principal) (Credential, error)
	// verify also reports when the credential stops being accepted.
	verify(ctx context.Context, credential string) (Principal, time.Time, error)
	teardown(ctx context.Context, credential string) error
}
