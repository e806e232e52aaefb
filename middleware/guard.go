package middleware

import (
	"context"
	"net/http"

	"github.com/MrEthical07/authgate"
)

// Engine is the subset of *authgate.Engine the handlers use.
type Engine interface {
	Strategy() authgate.Strategy
	CookieName() string
	SecureCookies() bool
	Config() authgate.Config
	Resolve(ctx context.Context, credential string) (authgate.AuthContext, error)
	Login(ctx context.Context, username, password string) (*authgate.LoginResult, error)
	Logout(ctx context.Context, credential string) error
}

type options struct {
	extractor Extractor
	optional  bool
}

// Option configures Guard and LogoutHandler.
type Option func(*options)

// WithExtractor replaces the default cookie extractor.
func WithExtractor(ex Extractor) Option {
	return func(o *options) {
		o.extractor = ex
	}
}

// Optional lets rejected requests through with AuthContext.Err set.
// Backend failures still end in a 500.
func Optional() Option {
	return func(o *options) {
		o.optional = true
	}
}

func buildOptions(engine Engine, opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.extractor == nil && engine != nil {
		o.extractor = CookieExtractor(engine.CookieName())
	}
	return o
}

// Guard authenticates each request. Admitted requests reach next with an
// authgate.AuthContext in their context; rejected ones get a 401 and next
// never runs. With sliding sessions the session cookie is re-sent with the
// refreshed expiry on every admitted request.
func Guard(engine Engine, opts ...Option) func(http.Handler) http.Handler {
	o := buildOptions(engine, opts)

	var refresh *cookieTemplate
	if engine != nil && engine.Strategy() == authgate.StrategySession && engine.Config().Session.SlidingExpiration {
		t := newCookieTemplate(engine)
		refresh = &t
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, authgate.ErrEngineNotReady)
				return
			}

			credential, _ := o.extractor(r)
			ac, err := engine.Resolve(r.Context(), credential)
			ac.Strategy = engine.Strategy()
			if err != nil {
				if !o.optional || !authgate.IsVerificationFailure(err) {
					WriteError(w, err)
					return
				}
				ac.Principal = nil
				ac.Err = err
			} else if refresh != nil && fromCookie(r, refresh.name, credential) {
				refresh.set(w, authgate.Credential{Value: credential, ExpiresAt: ac.ExpiresAt})
			}

			ctx := authgate.WithAuthContext(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// fromCookie reports whether credential was presented in the named cookie,
// as opposed to a header picked by a custom extractor.
func fromCookie(r *http.Request, name, credential string) bool {
	c, err := r.Cookie(name)
	return err == nil && credential != "" && c.Value == credential
}
