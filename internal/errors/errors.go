package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/etf-dashboard/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryValidation represents invalid request parameters (4xx)
	CategoryValidation ErrorCategory = "validation"
	// CategoryNotFound represents a missing ledger entry (4xx)
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryRateLimit represents rate limit errors
	CategoryRateLimit ErrorCategory = "rate_limit"
	// CategoryProvider represents market data provider errors
	CategoryProvider ErrorCategory = "provider"
	// CategoryNormalization represents a series that cannot be rebased
	CategoryNormalization ErrorCategory = "normalization"
	// CategoryStorage represents ledger store errors
	CategoryStorage ErrorCategory = "storage"
	// CategorySystem represents system errors (5xx)
	CategorySystem ErrorCategory = "system"
)

// Error codes exposed on the wire
const (
	CodeDataUnavailable   = "DATA_UNAVAILABLE"
	CodeNoBaseValue       = "NO_BASE_VALUE"
	CodeDegenerateBase    = "DEGENERATE_BASE"
	CodeUnknownInstrument = "UNKNOWN_INSTRUMENT"
	CodeInvalidParameter  = "INVALID_PARAMETER"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeStorageError      = "STORAGE_ERROR"
	CodeInternalError     = "INTERNAL_ERROR"
)

// Sentinels for errors.Is checks
var (
	ErrDataUnavailable   = stderrors.New("data unavailable")
	ErrNoBaseValue       = stderrors.New("no base value")
	ErrDegenerateBase    = stderrors.New("degenerate base value")
	ErrUnknownInstrument = stderrors.New("unknown instrument")
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// Is matches the taxonomy sentinels by code
func (e *CategorizedError) Is(target error) bool {
	switch target {
	case ErrDataUnavailable:
		return e.Code == CodeDataUnavailable
	case ErrNoBaseValue:
		return e.Code == CodeNoBaseValue
	case ErrDegenerateBase:
		return e.Code == CodeDegenerateBase
	case ErrUnknownInstrument:
		return e.Code == CodeUnknownInstrument
	}
	return false
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// Market data errors

// NewDataUnavailableError is returned when the upstream fetch for an instrument
// failed or returned a malformed payload. It aborts the whole refresh cycle.
func NewDataUnavailableError(instrument string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryProvider,
		StatusCode: http.StatusBadGateway,
		Code:       CodeDataUnavailable,
		Message:    fmt.Sprintf("price data unavailable for %s", instrument),
		Cause:      cause,
		Details: map[string]interface{}{
			"instrument": instrument,
		},
	}
}

// Normalization errors. These are recovered per instrument and never reach a client as a failure.

// NewNoBaseValueError creates an error for a series with no present price
func NewNoBaseValueError(instrument string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNormalization,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       CodeNoBaseValue,
		Message:    fmt.Sprintf("series %s has no price to rebase against", instrument),
		Details: map[string]interface{}{
			"instrument": instrument,
		},
	}
}

// NewDegenerateBaseError creates an error for a series whose base price is zero
func NewDegenerateBaseError(instrument string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNormalization,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       CodeDegenerateBase,
		Message:    fmt.Sprintf("series %s has a zero base price", instrument),
		Details: map[string]interface{}{
			"instrument": instrument,
		},
	}
}

// Ledger errors

// NewUnknownInstrumentError creates an error for a ledger update that matches no holding
func NewUnknownInstrumentError(instrument string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       CodeUnknownInstrument,
		Message:    fmt.Sprintf("no holding for instrument %s", instrument),
		Details: map[string]interface{}{
			"instrument": instrument,
		},
	}
}

// NewStorageError creates a ledger store error
func NewStorageError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryStorage,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeStorageError,
		Message:    fmt.Sprintf("storage error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// Request errors

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       CodeInvalidParameter,
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(retryAfter int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       CodeRateLimitExceeded,
		Message:    "rate limit exceeded",
		Details: map[string]interface{}{
			"retryAfter": retryAfter,
		},
	}
}

// System errors

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternalError,
		Message:    message,
		Cause:      cause,
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}

	return NewInternalError("unexpected error", err)
}

// IsRetryable reports whether the same request may succeed later
// without the caller changing anything
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	switch catErr.Category {
	case CategoryProvider, CategoryStorage:
		return true
	default:
		return false
	}
}
