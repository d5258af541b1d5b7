package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrEmptyCatalog        ErrorType = "EMPTY_CATALOG"
	ErrNotRunning          ErrorType = "NOT_RUNNING"
	ErrAlreadySettled      ErrorType = "ALREADY_SETTLED"
	ErrInsufficientBalance ErrorType = "INSUFFICIENT_BALANCE"
	ErrUnknownBidder       ErrorType = "UNKNOWN_BIDDER"
	ErrInvalidRequest      ErrorType = "INVALID_REQUEST"
	ErrRateLimited         ErrorType = "RATE_LIMITED"
	ErrAuthFailed          ErrorType = "AUTH_FAILED"
	ErrReadOnly            ErrorType = "READ_ONLY"
	ErrDuplicateRequest    ErrorType = "DUPLICATE_REQUEST"
	ErrStateCorrupted      ErrorType = "STATE_CORRUPTED"
	ErrInternal            ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on Type so callers can write errors.Is(err, apperrors.AlreadySettled).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// Sentinels for errors.Is comparisons. Never return these directly.
var (
	EmptyCatalog        = &AppError{Type: ErrEmptyCatalog}
	NotRunning          = &AppError{Type: ErrNotRunning}
	AlreadySettled      = &AppError{Type: ErrAlreadySettled}
	InsufficientBalance = &AppError{Type: ErrInsufficientBalance}
	UnknownBidder       = &AppError{Type: ErrUnknownBidder}
	StateCorrupted      = &AppError{Type: ErrStateCorrupted}
)

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func NewUnknownBidder(id string) *AppError {
	return New(ErrUnknownBidder, fmt.Sprintf("unknown bidder %q", id), nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

// TypeOf returns the AppError type carried by err, or ErrInternal.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrInternal
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrInvalidRequest:
		return http.StatusBadRequest
	case ErrAuthFailed:
		return http.StatusUnauthorized
	case ErrInsufficientBalance:
		return http.StatusPaymentRequired
	case ErrUnknownBidder:
		return http.StatusNotFound
	case ErrNotRunning, ErrAlreadySettled, ErrDuplicateRequest:
		return http.StatusConflict
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrEmptyCatalog, ErrReadOnly:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrNotRunning, ErrAlreadySettled:
		return "Too slow: the auction already ended. Wait for the next round."
	case ErrInsufficientBalance:
		return "Not enough funds."
	case ErrRateLimited:
		return "Retry after a short pause."
	case ErrEmptyCatalog:
		return "Load at least one lot into the catalog."
	case ErrAuthFailed:
		return "Check the admin key."
	case ErrDuplicateRequest:
		return "The same request is still being processed."
	default:
		return ""
	}
}
