package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error pins an HTTP status and machine code onto an underlying error.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// Classify maps any error from the service layer onto a status and code.
// Unknown errors are internal.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return New(http.StatusBadRequest, "validation_failed", err)
	}
	var ap *AlreadyProcessedError
	if errors.As(err, &ap) {
		return New(http.StatusBadRequest, "already_processed", err)
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return New(http.StatusNotFound, nf.code(), err)
	}
	var ce *ConflictError
	if errors.As(err, &ce) {
		return New(http.StatusConflict, ce.Code, err)
	}
	var fe *ForbiddenError
	if errors.As(err, &fe) {
		return New(http.StatusForbidden, "forbidden", err)
	}
	return New(http.StatusInternalServerError, "internal", err)
}
