// Package apierrors defines the sentinel error kinds used across the
// engine and their mapping to HTTP status codes at the handler boundary,
// mirroring the teacher's pattern of mapping db.ErrRecordNotFound to a 404
// in its handlers, generalized here into a small typed taxonomy.
package apierrors

import (
	"fmt"
	"net/http"
)

// Kind identifies one of the named error categories from the error taxonomy.
type Kind string

const (
	KindValidation               Kind = "ValidationError"
	KindNotFound                 Kind = "NotFoundError"
	KindConflict                 Kind = "ConflictError"
	KindDeployment               Kind = "DeploymentError"
	KindRollbackValidationFailed Kind = "RollbackValidationFailed"
	KindNoActiveDeployment       Kind = "NoActiveDeployment"
	KindNoPreviousDeployment     Kind = "NoPreviousDeployment"
)

// APIError is a sentinel-taxonomy error carrying its HTTP status code.
type APIError struct {
	Kind    Kind
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// StatusCode returns the HTTP status this error kind maps to.
func (e *APIError) StatusCode() int {
	switch e.Kind {
	case KindValidation, KindNoActiveDeployment, KindNoPreviousDeployment:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func Validation(format string, args ...any) *APIError {
	return newError(KindValidation, format, args...)
}

func NotFound(format string, args ...any) *APIError {
	return newError(KindNotFound, format, args...)
}

func Conflict(format string, args ...any) *APIError {
	return newError(KindConflict, format, args...)
}

func Deployment(format string, args ...any) *APIError {
	return newError(KindDeployment, format, args...)
}

func RollbackValidationFailed(format string, args ...any) *APIError {
	return newError(KindRollbackValidationFailed, format, args...)
}

func NoActiveDeployment(format string, args ...any) *APIError {
	return newError(KindNoActiveDeployment, format, args...)
}

func NoPreviousDeployment(format string, args ...any) *APIError {
	return newError(KindNoPreviousDeployment, format, args...)
}

func newError(kind Kind, format string, args ...any) *APIError {
	return &APIError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
