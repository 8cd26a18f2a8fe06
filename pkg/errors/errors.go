// Package errors defines the application errors that cross the service
// boundary. Anything else is logged and reported as INTERNAL_ERROR.
package errors

import "net/http"

// AppError is an error with a stable code and the HTTP status it maps to.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string { return e.Message }

func (e *AppError) Unwrap() error { return e.Internal }

// Is matches on Code so wrapped copies compare equal to their sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Wrap copies sentinel and attaches internal as the cause.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage copies sentinel with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

var (
	ErrUnauthorized   = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Connection lifecycle errors.
var (
	ErrConnectionNotFound = &AppError{Code: "CONNECTION_NOT_FOUND", Message: "Connection not found", StatusCode: http.StatusNotFound}
	ErrAlreadyConnected   = &AppError{Code: "ALREADY_CONNECTED", Message: "Connection is already paired", StatusCode: http.StatusConflict}
	ErrGatewayUnavailable = &AppError{Code: "GATEWAY_UNAVAILABLE", Message: "Could not create connection", StatusCode: http.StatusBadGateway}

	// ErrQrNotAvailable is a soft outcome: the retry budget ran out before
	// the gateway produced a code. Callers offer a refresh.
	ErrQrNotAvailable = &AppError{Code: "QR_NOT_READY", Message: "QR not ready yet, please refresh", StatusCode: http.StatusAccepted}
)
