package errors

import (
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	AccountNotFound     ErrorCode = "account_not_found"
	DuplicateAccount    ErrorCode = "duplicate_account"
	AccountFrozen       ErrorCode = "account_frozen"
	InsufficientBalance ErrorCode = "insufficient_balance"
	InvalidAmount       ErrorCode = "invalid_amount"
	InvalidInput        ErrorCode = "invalid_input"
	InvalidAccountID    ErrorCode = "invalid_account_id"
	SameAccountTransfer ErrorCode = "same_account_transfer"
	NotReady            ErrorCode = "not_ready"
	InternalError       ErrorCode = "internal_error"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func (e AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func NewAppErrorf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithDetails returns a copy so the predefined errors below are never mutated.
func (e *AppError) WithDetails(details string) *AppError {
	c := *e
	c.Details = details
	return &c
}

// HTTPStatus maps an error code to the status the HTTP adapter responds with.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case AccountNotFound:
		return http.StatusNotFound
	case DuplicateAccount:
		return http.StatusConflict
	case AccountFrozen:
		return http.StatusLocked
	case InsufficientBalance:
		return http.StatusUnprocessableEntity
	case InvalidAmount, InvalidInput, InvalidAccountID, SameAccountTransfer:
		return http.StatusBadRequest
	case NotReady:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Predefined errors for common cases
var (
	ErrAccountNotFound        = NewAppError(AccountNotFound, "account not found")
	ErrDuplicateAccount       = NewAppError(DuplicateAccount, "account already exists")
	ErrAccountFrozen          = NewAppError(AccountFrozen, "account is frozen")
	ErrInsufficientBalance    = NewAppError(InsufficientBalance, "insufficient balance")
	ErrInvalidAmount          = NewAppError(InvalidAmount, "amount must be positive")
	ErrInvalidAccountID       = NewAppError(InvalidAccountID, "invalid account id")
	ErrSameAccountTransfer    = NewAppError(SameAccountTransfer, "cannot transfer to the same account")
	ErrCacheNotReady          = NewAppError(NotReady, "account cache is not loaded")
	ErrCannotBeginTransaction = NewAppError(InternalError, "executor cannot begin a transaction")
)

// As extracts an *AppError from err, falling back to an internal error.
func As(err error) *AppError {
	switch e := err.(type) {
	case *AppError:
		return e
	case AppError:
		return &e
	default:
		return NewAppError(InternalError, "an unexpected error occurred").WithDetails(err.Error())
	}
}
