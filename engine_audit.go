package authgate

import (
	"context"
	"errors"

	"github.com/MrEthical07/authgate/internal/audit"
)

const (
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventSessionCreated       = "session_created"
	auditEventSessionDestroyFailed = "session_destroy_failed"
	auditEventLogout               = "logout"
	auditEventGuardReject          = "guard_reject"
)

// AuditErrorCode is the stable error code written to AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrAuthenticationFailed AuditErrorCode = "authentication_failed"
	auditErrUserNotFound         AuditErrorCode = "user_not_found"
	auditErrInvalidCredentials   AuditErrorCode = "invalid_credentials"
	auditErrAccountUnverified    AuditErrorCode = "account_unverified"
	auditErrInvalidToken         AuditErrorCode = "invalid_token"
	auditErrTokenExpired         AuditErrorCode = "token_expired"
	auditErrPrincipalGone        AuditErrorCode = "principal_gone"
	auditErrSessionNotFound      AuditErrorCode = "session_not_found"
	auditErrUnauthenticated      AuditErrorCode = "unauthenticated"
	auditErrSigningUnavailable   AuditErrorCode = "signing_unavailable"
	auditErrSessionStoreDown     AuditErrorCode = "session_store_unavailable"
	auditErrUserStoreDown        AuditErrorCode = "user_store_unavailable"
	auditErrLoginThrottled       AuditErrorCode = "login_throttled"
	auditErrCanceled             AuditErrorCode = "canceled"
	auditErrInternal             AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := audit.NewEvent(eventType, success)
	event.Strategy = string(e.config.Strategy)
	event.UserID = userID
	event.RequestID = RequestIDFromContext(ctx)
	event.IP = clientIPFromContext(ctx)
	if metadataBuilder != nil {
		event.Metadata = metadataBuilder()
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	// Most specific first: wrapped errors match several sentinels.
	switch {
	case errors.Is(err, ErrLoginThrottled):
		return auditErrLoginThrottled
	case errors.Is(err, ErrPrincipalGone):
		return auditErrPrincipalGone
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAuthenticationFailed):
		return auditErrAuthenticationFailed
	case errors.Is(err, ErrAccountNotVerified):
		return auditErrAccountUnverified
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrUserNotAuthenticated):
		return auditErrUnauthenticated
	case errors.Is(err, ErrSigningUnavailable):
		return auditErrSigningUnavailable
	case errors.Is(err, ErrSessionStoreUnavailable):
		return auditErrSessionStoreDown
	case errors.Is(err, ErrUserStoreUnavailable):
		return auditErrUserStoreDown
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return auditErrCanceled
	default:
		return auditErrInternal
	}
}
