package authgate

import "time"

// LintWarning is a non-fatal configuration finding.
type LintWarning struct {
	Code    string
	Message string
}

// LintResult is the ordered list of findings from Config.Lint.
type LintResult []LintWarning

func (r LintResult) Codes() []string {
	codes := make([]string, 0, len(r))
	for _, w := range r {
		codes = append(codes, w.Code)
	}
	return codes
}

const (
	minRecommendedSecretBytes = 32
	longValidityWindow        = 24 * time.Hour
	longSessionTTL            = 30 * 24 * time.Hour
)

// Lint reports settings that are legal but risky. It never fails; callers
// usually log the result at startup.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code, msg string) {
		ws = append(ws, LintWarning{Code: code, Message: msg})
	}

	if c.Strategy == StrategyToken {
		switch n := len(c.Token.Secret); {
		case n == 0:
			add("secret_missing", "no token secret configured; logins will fail with 500")
		case n < minRecommendedSecretBytes:
			add("secret_short", "token secret is shorter than 32 bytes")
		}
		if c.Token.ValidityWindow > longValidityWindow {
			add("validity_window_long", "token validity window exceeds 24h and tokens cannot be revoked")
		}
	}
	if c.Strategy == StrategySession && c.Session.TTL > longSessionTTL {
		add("session_ttl_long", "session TTL exceeds 30 days")
	}
	if !c.SecureCookies() {
		add("cookies_insecure", "credential cookies are sent without the Secure attribute")
	}
	if c.IsDevelopment() {
		add("development_mode", "running with development relaxations")
	}
	if !c.Throttle.Enabled {
		add("throttle_disabled", "failed logins are not rate limited")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", "audit events are not emitted")
	}

	return ws
}
