package utils

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorKind classifies an AppError. The string values travel over the wire
// in tool error results.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindTimeout    ErrorKind = "timeout"
	KindCancelled  ErrorKind = "cancelled"
	KindInternal   ErrorKind = "internal"
)

// AppError is the single typed error used across the services. Field names
// the offending parameter for validation errors.
type AppError struct {
	Kind    ErrorKind
	Message string
	Field   string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError of the same kind, so errors.Is(err, ErrTimeout)
// works regardless of message.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrValidation = &AppError{Kind: KindValidation}
	ErrNotFound   = &AppError{Kind: KindNotFound}
	ErrConflict   = &AppError{Kind: KindConflict}
	ErrTimeout    = &AppError{Kind: KindTimeout}
	ErrCancelled  = &AppError{Kind: KindCancelled}
	ErrInternal   = &AppError{Kind: KindInternal}
)

func NewValidationError(field, format string, args ...any) error {
	return &AppError{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(format string, args ...any) error {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewConflictError(format string, args ...any) error {
	return &AppError{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func NewTimeoutError(format string, args ...any) error {
	return &AppError{Kind: KindTimeout, Message: fmt.Sprintf(format, args...)}
}

func NewCancelledError(format string, args ...any) error {
	return &AppError{Kind: KindCancelled, Message: fmt.Sprintf(format, args...)}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(err error, format string, args ...any) error {
	return &AppError{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf reports the kind of err. Untyped errors are internal.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// ErrorResponse defines the structure of HTTP error responses.
type ErrorResponse struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ErrorHandler is a middleware to catch panics and return structured errors.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				GetLogger().Error("Unhandled panic", zap.Any("error", err))

				c.JSON(http.StatusInternalServerError, ErrorResponse{
					Message: "Internal Server Error",
					Details: "An unexpected error occurred. Please try again later.",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// JSONError sends a standardized JSON error response.
func JSONError(c *gin.Context, status int, message string, details string) {
	GetLogger().Warn(message, zap.String("details", details))
	c.JSON(status, ErrorResponse{Message: message, Details: details})
}

// HTTPStatus maps an error kind onto an HTTP status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
