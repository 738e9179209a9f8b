package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// The prefix of each code selects its category (see HTTPStatus).
const (
	// Validation: raised at call entry, before any I/O.
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidValue ErrorCode = "validation_invalid_value"
	ErrCodeValidationDuplicateKey ErrorCode = "validation_duplicate_key"

	// Backing store
	ErrCodeConnectivity ErrorCode = "connectivity_unavailable"
	ErrCodeConstraint   ErrorCode = "constraint_violation"
	ErrCodeTransaction  ErrorCode = "transaction_failed"
	ErrCodeAggregate    ErrorCode = "aggregate_rollback_failed"

	// Typed map lookups (e.g. the total-physical-memory entry)
	ErrCodeMissingData ErrorCode = "missing_data_map_key"

	// Stopwatch registry
	ErrCodeStopwatchAlreadyRunning ErrorCode = "conflict_stopwatch_already_running"
	ErrCodeStopwatchAlreadyStopped ErrorCode = "conflict_stopwatch_already_stopped"
	ErrCodeNotFoundStopwatch       ErrorCode = "not_found_stopwatch"

	// Schema versioning
	ErrCodeMigrationDownUnsupported ErrorCode = "unsupported_migration_down"

	// Internal
	ErrCodeInternalDB              ErrorCode = "internal_database_error"
	ErrCodeInternalSerialization   ErrorCode = "internal_serialization_error"
	ErrCodeInternalUnsupportedKind ErrorCode = "internal_unsupported_item_kind"
	ErrCodeInternalUnexpected      ErrorCode = "internal_unexpected_error"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the health server to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(s, "conflict_"), strings.HasPrefix(s, "constraint_"):
		return http.StatusConflict
	case strings.HasPrefix(s, "connectivity_"):
		return http.StatusServiceUnavailable
	case strings.HasPrefix(s, "unsupported_"):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard error type used throughout the module.
// Every failure that crosses a package boundary is expressed as an AppError
// so callers can branch on Code with errors.As.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// Errors returns the individual causes carried by the error. For an
// aggregate failure this is the original error followed by the rollback
// error; otherwise it is the single wrapped error, if any.
func (e *AppError) Errors() []error {
	if e.Err == nil {
		return nil
	}
	if joined, ok := e.Err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{e.Err}
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// NewAggregateError reports a failed unit of work whose rollback also failed.
// Neither error is discarded: both are reachable through errors.Is/errors.As
// and through Errors(), original first.
func NewAggregateError(message string, original, rollback error) *AppError {
	return &AppError{
		Code:    ErrCodeAggregate,
		Message: message,
		Err:     errors.Join(original, rollback),
		Details: map[string]any{
			"original_error": errString(original),
			"rollback_error": errString(rollback),
		},
	}
}

// CodeOf extracts the ErrorCode from the first AppError in err's chain.
// It returns the empty code when err carries no AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode reports whether err's chain contains an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
