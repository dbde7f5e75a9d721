package cortex

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInvalidToolType is returned when a tool is declared with a
	// type outside the allowed set.
	ErrInvalidToolType = errors.New("invalid tool type")

	// ErrInvalidModel is returned for a model outside the allow-list.
	ErrInvalidModel = errors.New("invalid model")

	// ErrInvalidToolChoice is returned for an unknown tool-choice type.
	ErrInvalidToolChoice = errors.New("invalid tool choice")

	// ErrMissingResourceID is returned when a resource declares
	// neither an explicit identifier nor all components needed to
	// synthesize one.
	ErrMissingResourceID = errors.New("missing resource identifier")

	// ErrDuplicateName is returned when a tool or resource name
	// collides within one configuration.
	ErrDuplicateName = errors.New("duplicate name")

	// ErrUnboundResource is returned at serialization when a resource
	// does not match a declared tool of a resource-bearing type.
	ErrUnboundResource = errors.New("resource not bound to a declared tool")

	// ErrSQLTurnLimit is returned when the agent keeps requesting SQL
	// execution past the configured turn limit.
	ErrSQLTurnLimit = errors.New("sql execution turn limit exceeded")

	// ErrNoExecutor is returned when the agent requests SQL execution
	// but the connection has no executor.
	ErrNoExecutor = errors.New("no sql executor configured")
)

// APIError is the structured error the service returns in an error
// response body.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cortex api error %s: %s (request %s)", e.Code, e.Message, e.RequestID)
}

// TransportError reports a non-success initial response from the
// service, before any event was read.
type TransportError struct {
	StatusCode int
	Body       string

	// API is set when the body parses as a structured service error.
	API *APIError
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("bad api response: %d - %s", e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error {
	if e.API == nil {
		return nil
	}
	return e.API
}

func newTransportError(status int, body []byte) *TransportError {
	te := &TransportError{StatusCode: status, Body: string(body)}
	apiErr := &APIError{}
	if err := json.Unmarshal(body, apiErr); err == nil && apiErr.Message != "" {
		te.API = apiErr
	}
	return te
}

// StreamError wraps a failure that happened while the event stream
// was being read, forwarded to the consumer at the point in the
// sequence where it occurred.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("event stream failed: %v", e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}
