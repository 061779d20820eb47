package httpx

import (
	"fmt"
	"net/http"
)

// Machine-readable error codes surfaced to API clients. Clients dispatch on
// the code, not the HTTP status: TOKEN_EXPIRED means "try a refresh" while
// INVALID_TOKEN and TOKEN_REVOKED mean "re-authenticate".
const (
	CodeValidationError     = "VALIDATION_ERROR"
	CodeMissingToken        = "MISSING_TOKEN"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeTokenExpired        = "TOKEN_EXPIRED"
	CodeTokenRevoked        = "TOKEN_REVOKED"
	CodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	CodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeTokenUsed           = "TOKEN_USED"
	CodeAlreadyVerified     = "ALREADY_VERIFIED"
	CodeUserExists          = "USER_EXISTS"
	CodeForbidden           = "FORBIDDEN"
	CodeOAuthNotConfigured  = "OAUTH_NOT_CONFIGURED"
	CodeOAuthAuthFailed     = "OAUTH_AUTH_FAILED"
	CodeLastAuthMethod      = "LAST_AUTH_METHOD"
	CodeServerError         = "SERVER_ERROR"
)

// Error is an API error carrying an HTTP status and a stable wire code.
// It serves both as a Go error and as the response body shape.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WriteError writes the error as a JSON response.
func WriteError(w http.ResponseWriter, e *Error) {
	NoCache(w)
	WriteJSON(w, e.Status, e)
}

// Predefined API errors. Messages are deliberately generic: authentication
// failures never reveal whether an account exists.
var (
	ErrMissingToken = &Error{
		Status:  http.StatusUnauthorized,
		Code:    CodeMissingToken,
		Message: "missing or malformed authorization header",
	}

	ErrInvalidToken = &Error{
		Status:  http.StatusUnauthorized,
		Code:    CodeInvalidToken,
		Message: "invalid token",
	}

	ErrTokenExpired = &Error{
		Status:  http.StatusUnauthorized,
		Code:    CodeTokenExpired,
		Message: "token has expired",
	}

	ErrTokenRevoked = &Error{
		Status:  http.StatusUnauthorized,
		Code:    CodeTokenRevoked,
		Message: "token has been revoked",
	}

	ErrInvalidRefreshToken = &Error{
		Status:  http.StatusUnauthorized,
		Code:    CodeInvalidRefreshToken,
		Message: "invalid or expired refresh token",
	}

	ErrInvalidCredentials = &Error{
		Status:  http.StatusUnauthorized,
		Code:    CodeInvalidCredentials,
		Message: "invalid credentials",
	}

	ErrTokenUsed = &Error{
		Status:  http.StatusBadRequest,
		Code:    CodeTokenUsed,
		Message: "token has already been used",
	}

	ErrAlreadyVerified = &Error{
		Status:  http.StatusBadRequest,
		Code:    CodeAlreadyVerified,
		Message: "email is already verified",
	}

	ErrUserExists = &Error{
		Status:  http.StatusConflict,
		Code:    CodeUserExists,
		Message: "an account with this email already exists",
	}

	ErrForbidden = &Error{
		Status:  http.StatusForbidden,
		Code:    CodeForbidden,
		Message: "insufficient role for this operation",
	}

	ErrOAuthNotConfigured = &Error{
		Status:  http.StatusNotImplemented,
		Code:    CodeOAuthNotConfigured,
		Message: "this oauth provider is not configured",
	}

	ErrOAuthAuthFailed = &Error{
		Status:  http.StatusUnauthorized,
		Code:    CodeOAuthAuthFailed,
		Message: "oauth authentication failed",
	}

	ErrLastAuthMethod = &Error{
		Status:  http.StatusBadRequest,
		Code:    CodeLastAuthMethod,
		Message: "cannot unlink the last authentication method",
	}

	ErrServer = &Error{
		Status:  http.StatusInternalServerError,
		Code:    CodeServerError,
		Message: "internal server error",
	}
)

// ValidationError builds a 400 response describing a malformed request.
func ValidationError(msg string) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Code:    CodeValidationError,
		Message: msg,
	}
}

// RateLimitError builds a 429 response carrying retry guidance.
func RateLimitError(retryAfterSeconds int) *Error {
	return &Error{
		Status:  http.StatusTooManyRequests,
		Code:    CodeRateLimitExceeded,
		Message: fmt.Sprintf("too many requests, retry in %ds", retryAfterSeconds),
	}
}
