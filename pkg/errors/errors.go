package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for the failure classes surfaced to callers.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrAuthRequired     = errors.New("authentication required")
	ErrForbidden        = errors.New("forbidden")
	ErrConflict         = errors.New("conflict")
	ErrServerError      = errors.New("server error")
	ErrTransport        = errors.New("transport failure")
	ErrUnexpectedResult = errors.New("unexpected result code")
)

// AppError represents a classified failure with the HTTP status that produced it.
// Status is zero for failures that never reached the server.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error with a caller-facing message.
func NotFound(message string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: message,
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// InvalidInput creates a 400 error. It is also used for client-side validation
// failures that are rejected before any request is sent.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// AuthRequired creates a 401 error.
func AuthRequired(message string) *AppError {
	return &AppError{
		Code:    "AUTH_REQUIRED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrAuthRequired,
	}
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// Conflict creates a 409 error.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrConflict,
	}
}

// ServerError creates an error for a 5xx response.
func ServerError(status int, message string) *AppError {
	return &AppError{
		Code:    "SERVER_ERROR",
		Message: message,
		Status:  status,
		Err:     ErrServerError,
	}
}

// Transport wraps a failure where no response was received.
func Transport(err error) *AppError {
	return &AppError{
		Code:    "TRANSPORT_ERROR",
		Message: "request could not be completed",
		Err:     fmt.Errorf("%w: %w", ErrTransport, err),
	}
}

// UnexpectedResult creates an error for a 2xx response whose result code is not
// a recognized success and which carries no data.
func UnexpectedResult(resultCode, message string) *AppError {
	return &AppError{
		Code:    "UNEXPECTED_RESULT",
		Message: fmt.Sprintf("result code %q: %s", resultCode, message),
		Status:  http.StatusOK,
		Err:     ErrUnexpectedResult,
	}
}

// Client creates an error for any other non-2xx status.
func Client(status int, message string) *AppError {
	err := &AppError{
		Code:    "HTTP_ERROR",
		Message: message,
		Status:  status,
	}
	switch status {
	case http.StatusBadRequest:
		err.Code, err.Err = "INVALID_INPUT", ErrInvalidInput
	case http.StatusForbidden:
		err.Code, err.Err = "FORBIDDEN", ErrForbidden
	case http.StatusConflict:
		err.Code, err.Err = "CONFLICT", ErrConflict
	}
	return err
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// Message returns the caller-facing message of err. For an AppError it is the
// Message field; otherwise the full error string.
func Message(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// HTTPStatus returns the HTTP status associated with the given error, or 0 when
// the failure never produced a response.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrServerError):
		return http.StatusInternalServerError
	default:
		return 0
	}
}

// IsRetryableByUser reports whether the failure is transient from the caller's
// point of view ("try again later") as opposed to "fix your input".
func IsRetryableByUser(err error) bool {
	return errors.Is(err, ErrServerError) || errors.Is(err, ErrTransport)
}
