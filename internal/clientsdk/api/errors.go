package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// TransientNetworkError is a failure the caller may retry unchanged:
// timeouts, lost connectivity, 408, 429 and 5xx answers.
type TransientNetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransientNetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: transient failure (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transient failure: %v", e.Op, e.Err)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

func (e *TransientNetworkError) Retryable() bool { return true }

// IsTransient reports whether err (or anything it wraps) is retryable.
func IsTransient(err error) bool {
	var te *TransientNetworkError
	return errors.As(err, &te)
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ServerError is a typed, non-retryable answer decoded from the error
// envelope.
type ServerError struct {
	StatusCode       int
	Code             string
	Message          string
	Fields           []FieldError
	AlreadyProcessed bool
	ProofStatus      string
}

func (e *ServerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
}

// ContractError is returned when a 2xx body lacks a required field or cannot
// be decoded into the endpoint's response type.
type ContractError struct {
	Endpoint string
	Field    string
	Err      error
}

func (e *ContractError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: response missing required field %q", e.Endpoint, e.Field)
	}
	return fmt.Sprintf("%s: malformed response: %v", e.Endpoint, e.Err)
}

func (e *ContractError) Unwrap() error { return e.Err }

func transientStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// classifyTransportError keeps caller cancellation as-is. Timeouts, dial and
// reset errors are transient; so is anything else that never produced a
// response.
func classifyTransportError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &TransientNetworkError{Op: op, Err: fmt.Errorf("timeout: %w", err)}
	}
	return &TransientNetworkError{Op: op, Err: err}
}
