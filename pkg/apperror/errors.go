package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Connection tokens (TOK) ----

func ErrInvalidRequest(message string) *AppError {
	return New("TOK_001", message, http.StatusBadRequest)
}

func ErrTokenNotFound() *AppError {
	return New("TOK_002", "Connection token not found", http.StatusNotFound)
}

func ErrTokenExpired() *AppError {
	return New("TOK_003", "Connection token has expired", http.StatusGone)
}

func ErrTokenAlreadyUsed() *AppError {
	return New("TOK_004", "Connection token has already been used", http.StatusConflict)
}

// ---- Identity bindings (BIND) ----

func ErrAccountNotFound() *AppError {
	return New("BIND_001", "Account not found", http.StatusNotFound)
}

func ErrNotBound() *AppError {
	return New("BIND_002", "Chat identity is not bound to any account", http.StatusNotFound)
}

// ---- Wallet funding (FUND) ----

func ErrInvalidAmount() *AppError {
	return New("FUND_001", "Invalid amount", http.StatusBadRequest)
}

func ErrDuplicateReference(reference string) *AppError {
	return New("FUND_002", fmt.Sprintf("Reference %s already credited", reference), http.StatusConflict)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrInvalidSignature() *AppError {
	return New("AUTH_002", "Invalid signature", http.StatusUnauthorized)
}

// ---- Rate limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// ErrStorageUnavailable wraps a store-layer failure. Callers must not treat
// it as "not found".
func ErrStorageUnavailable(err error) *AppError {
	return Wrap("SYS_001", "Storage unavailable", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error.
func InternalError(err error) *AppError {
	return Wrap("SYS_002", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a request validation error.
func Validation(message string) *AppError {
	return New("TOK_001", message, http.StatusBadRequest)
}
