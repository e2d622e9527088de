package errors

import (
	"errors"
	"net/http"
)

// Authentication and authorization codes. These are the only codes rendered in
// auth failure responses.
const (
	// ErrCodeTokenRequired means no bearer credential was presented.
	ErrCodeTokenRequired ErrorCode = "TOKEN_REQUIRED"
	// ErrCodeUnsupportedTokenType means no strategy is registered for the token kind.
	ErrCodeUnsupportedTokenType ErrorCode = "UNSUPPORTED_TOKEN_TYPE"
	// ErrCodeAuthenticationFailed means a strategy or the resolver rejected the caller.
	ErrCodeAuthenticationFailed ErrorCode = "AUTHENTICATION_FAILED"
	// ErrCodeVerificationFailed means the identity platform rejected a structured token.
	// It is internal only; PublicCode renders it as AUTHENTICATION_FAILED.
	ErrCodeVerificationFailed ErrorCode = "VERIFICATION_FAILED"
	// ErrCodeAuthenticationRequired means an authorization check ran without a context.
	ErrCodeAuthenticationRequired ErrorCode = "AUTHENTICATION_REQUIRED"
	// ErrCodeInsufficientRole means the caller's role is not in the allowed set.
	ErrCodeInsufficientRole ErrorCode = "INSUFFICIENT_ROLE"
	// ErrCodeInsufficientPermissions means at least one required permission is missing.
	ErrCodeInsufficientPermissions ErrorCode = "INSUFFICIENT_PERMISSIONS"
	// ErrCodeInsufficientAccessLevel means the caller is below the minimum access level.
	ErrCodeInsufficientAccessLevel ErrorCode = "INSUFFICIENT_ACCESS_LEVEL"
	// ErrCodeAuthorizationError means the authorization check itself faulted.
	ErrCodeAuthorizationError ErrorCode = "AUTHORIZATION_ERROR"
)

var publicMessages = map[ErrorCode]string{
	ErrCodeTokenRequired:           "Authentication token is required",
	ErrCodeUnsupportedTokenType:    "Unsupported token type",
	ErrCodeAuthenticationFailed:    "Authentication failed",
	ErrCodeVerificationFailed:      "Authentication failed",
	ErrCodeAuthenticationRequired:  "Authentication required",
	ErrCodeInsufficientRole:        "Insufficient role",
	ErrCodeInsufficientPermissions: "Insufficient permissions",
	ErrCodeInsufficientAccessLevel: "Insufficient access level",
	ErrCodeAuthorizationError:      "Authorization check failed",
	ErrCodeInternal:                "Internal server error",
}

// PublicMessage returns the fixed client-facing message for a code.
func PublicMessage(code ErrorCode) string {
	if msg, ok := publicMessages[code]; ok {
		return msg
	}
	return publicMessages[ErrCodeInternal]
}

// HTTPStatus maps an error code to the HTTP status used when rendering it.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeTokenRequired, ErrCodeUnsupportedTokenType, ErrCodeAuthenticationFailed,
		ErrCodeVerificationFailed, ErrCodeAuthenticationRequired:
		return http.StatusUnauthorized
	case ErrCodeInsufficientRole, ErrCodeInsufficientPermissions, ErrCodeInsufficientAccessLevel:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicCode collapses internal-only codes to what a client may see.
// VERIFICATION_FAILED is surfaced as AUTHENTICATION_FAILED.
func PublicCode(code ErrorCode) ErrorCode {
	if code == ErrCodeVerificationFailed {
		return ErrCodeAuthenticationFailed
	}
	return code
}

// TokenRequired reports a missing or blank bearer credential.
func TokenRequired() *AppError {
	return New(ErrCodeTokenRequired, PublicMessage(ErrCodeTokenRequired))
}

// UnsupportedTokenType reports a token kind with no strategy bound.
func UnsupportedTokenType() *AppError {
	return New(ErrCodeUnsupportedTokenType, PublicMessage(ErrCodeUnsupportedTokenType))
}

// AuthenticationFailed wraps a strategy or resolver failure. The cause is for logs only.
func AuthenticationFailed(cause error) *AppError {
	return &AppError{Code: ErrCodeAuthenticationFailed, Message: PublicMessage(ErrCodeAuthenticationFailed), Cause: cause}
}

// VerificationFailed wraps an identity-platform rejection.
func VerificationFailed(cause error) *AppError {
	return &AppError{Code: ErrCodeVerificationFailed, Message: "token verification failed", Cause: cause}
}

// IsAuthFailure reports whether err carries a 401-class code.
func IsAuthFailure(err error) bool {
	return HTTPStatus(GetCode(err)) == http.StatusUnauthorized
}

// IsForbidden reports whether err carries a 403-class code.
func IsForbidden(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && HTTPStatus(appErr.Code) == http.StatusForbidden
}
