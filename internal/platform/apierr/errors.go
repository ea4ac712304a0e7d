package apierr

import (
	"fmt"
	"strings"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when caller input is rejected before any state
// change. Fields is ordered by the input's declaration order.
type ValidationError struct {
	Fields []FieldError
}

func NewValidationError(fields ...FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) HasErrors() bool { return e != nil && len(e.Fields) > 0 }

// AlreadyProcessedError is returned by approve/reject when the proof has
// already left the pending state. No state was changed.
type AlreadyProcessedError struct {
	ProofID string
	Status  string
}

func (e *AlreadyProcessedError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("payment proof %s already processed", e.ProofID)
	}
	return fmt.Sprintf("payment proof %s already %s", e.ProofID, e.Status)
}

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Kind + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) code() string {
	if e.Kind == "" {
		return "not_found"
	}
	return strings.ReplaceAll(e.Kind, " ", "_") + "_not_found"
}

type ConflictError struct {
	Code    string
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	if e.Reason == "" {
		return "forbidden"
	}
	return e.Reason
}
