package authgate

import (
	"errors"
	"net/http"
)

var (
	// ErrUserNotAuthenticated is returned when a request carries no usable
	// proof of identity.
	ErrUserNotAuthenticated = errors.New("user not authenticated")
	// ErrAuthenticationFailed is the single outward result for an unknown
	// user or a wrong password.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrAccountNotVerified is returned when the credential matches but the
	// account has not been verified yet.
	ErrAccountNotVerified = errors.New("account not verified")
	// ErrTokenInvalid covers malformed tokens and signature mismatches.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned for a correctly signed token past its exp.
	ErrTokenExpired = errors.New("token expired")
	// ErrPrincipalGone is returned when a valid token names a user that no
	// longer exists in the user store.
	ErrPrincipalGone = errors.New("principal no longer exists")
	// ErrSigningUnavailable is returned when a token must be issued but no
	// signing secret is configured.
	ErrSigningUnavailable = errors.New("token signing unavailable")
	// ErrSessionStoreUnavailable wraps session backend failures.
	ErrSessionStoreUnavailable = errors.New("session store unavailable")
	// ErrSessionNotFound is returned when a session id is absent, unknown or
	// expired.
	ErrSessionNotFound = errors.New("session not found")
	// ErrLoginThrottled is returned by Login while the identifier or client
	// IP has no attempts left in the current window.
	ErrLoginThrottled = errors.New("too many login attempts")
	// ErrUnsupportedStrategy is a startup-only configuration error.
	ErrUnsupportedStrategy = errors.New("unsupported authentication strategy")

	// ErrUserNotFound is returned by UserStore implementations for unknown
	// identifiers or ids.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned by UserStore implementations when
	// the password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserStoreUnavailable wraps user store failures other than the two
	// verification outcomes above.
	ErrUserStoreUnavailable = errors.New("user store unavailable")
	// ErrEngineNotReady is returned by methods on a nil or partially built
	// Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ErrorKind is the public name carried in error response bodies.
type ErrorKind string

const (
	KindUserNotAuthenticated ErrorKind = "UserNotAuthenticated"
	KindAuthenticationFailed ErrorKind = "AuthenticationFailed"
	KindAccountNotVerified   ErrorKind = "AccountNotVerified"
	// KindUnexpectedError is what session-mode rejections have always been
	// reported as; clients depend on it.
	KindUnexpectedError     ErrorKind = "UnexpectedError"
	KindInternalServerError ErrorKind = "InternalServerError"
	KindBadRequest          ErrorKind = "BadRequest"
	KindTooManyRequests     ErrorKind = "TooManyRequests"
)

// ErrorResponse is the {name, message} body written for failed requests.
type ErrorResponse struct {
	Status  int       `json:"-"`
	Name    ErrorKind `json:"name"`
	Message string    `json:"message"`
}

const msgUserNotAuthenticated = "User not authenticated"

// Classify maps an engine error to its HTTP status and public body.
// Verification failures become 401; everything else is a generic 500 so
// no internal detail reaches the client.
func Classify(err error) ErrorResponse {
	switch {
	case err == nil:
		return ErrorResponse{Status: http.StatusOK}
	case errors.Is(err, ErrAuthenticationFailed),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrInvalidCredentials):
		return ErrorResponse{
			Status:  http.StatusUnauthorized,
			Name:    KindAuthenticationFailed,
			Message: "Authentication failed",
		}
	case errors.Is(err, ErrLoginThrottled):
		return ErrorResponse{
			Status:  http.StatusTooManyRequests,
			Name:    KindTooManyRequests,
			Message: "Too many login attempts",
		}
	case errors.Is(err, ErrAccountNotVerified):
		return ErrorResponse{
			Status:  http.StatusUnauthorized,
			Name:    KindAccountNotVerified,
			Message: "User account not verified",
		}
	case errors.Is(err, ErrSessionNotFound):
		return ErrorResponse{
			Status:  http.StatusUnauthorized,
			Name:    KindUnexpectedError,
			Message: msgUserNotAuthenticated,
		}
	case errors.Is(err, ErrUserNotAuthenticated),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrPrincipalGone):
		return ErrorResponse{
			Status:  http.StatusUnauthorized,
			Name:    KindUserNotAuthenticated,
			Message: msgUserNotAuthenticated,
		}
	default:
		return InternalError()
	}
}

// InternalError is the generic body for infrastructure failures.
func InternalError() ErrorResponse {
	return ErrorResponse{
		Status:  http.StatusInternalServerError,
		Name:    KindInternalServerError,
		Message: "Internal server error",
	}
}

// IsVerificationFailure reports whether err is recovered into a 401.
func IsVerificationFailure(err error) bool {
	return Classify(err).Status == http.StatusUnauthorized
}
