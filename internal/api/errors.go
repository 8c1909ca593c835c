package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"todo-calendar/internal/repository"
	"todo-calendar/internal/service"
)

// Code classifies a procedure failure.
type Code string

const (
	CodeBadRequest         Code = "BAD_REQUEST"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeNotFound           Code = "NOT_FOUND"
	CodeMethodNotSupported Code = "METHOD_NOT_SUPPORTED"
	CodeUnsupportedMedia   Code = "UNSUPPORTED_MEDIA_TYPE"
	CodeUnavailable        Code = "SERVICE_UNAVAILABLE"
	CodeInternal           Code = "INTERNAL_SERVER_ERROR"
)

var statusByCode = map[Code]int{
	CodeBadRequest:         http.StatusBadRequest,
	CodeUnauthorized:       http.StatusUnauthorized,
	CodeForbidden:          http.StatusForbidden,
	CodeNotFound:           http.StatusNotFound,
	CodeMethodNotSupported: http.StatusMethodNotAllowed,
	CodeUnsupportedMedia:   http.StatusUnsupportedMediaType,
	CodeUnavailable:        http.StatusServiceUnavailable,
	CodeInternal:           http.StatusInternalServerError,
}

// Status returns the HTTP status for the code.
func (c Code) Status() int {
	if status, ok := statusByCode[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error is the error body of a failed procedure call.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// toError maps domain errors onto procedure errors. Unknown errors become
// INTERNAL_SERVER_ERROR and report true so the caller logs them.
func toError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, false
	}

	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return &Error{Code: CodeBadRequest, Message: verr.Message, Field: verr.Field}, false
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &Error{Code: CodeBadRequest, Message: describe(fe), Field: fe.Field()}, false
	}

	switch {
	case errors.Is(err, service.ErrForbidden):
		return newError(CodeForbidden, "You do not own this task"), false
	case errors.Is(err, repository.ErrUnavailable):
		return newError(CodeUnavailable, "Storage is unavailable"), false
	case errors.Is(err, repository.ErrNotFound):
		return newError(CodeNotFound, "Not found"), false
	}
	return newError(CodeInternal, "Internal server error"), true
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must be a YYYY-MM-DD date", fe.Field())
	case "clock":
		return fmt.Sprintf("%s must be an HH:MM time", fe.Field())
	case "notblank":
		return fmt.Sprintf("%s must not be blank", fe.Field())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}
