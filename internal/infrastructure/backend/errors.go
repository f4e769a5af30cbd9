package backend

import (
	"errors"
	"fmt"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/AtRiskMedia/spabook-go/internal/domain/query"
)

// ErrorPayload is the backend's structured error body.
type ErrorPayload struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// StatusError is returned for any non-2xx backend response.
type StatusError struct {
	StatusCode int
	Payload    ErrorPayload
}

var _ query.Structured = (*StatusError)(nil)

func newStatusError(status int, body []byte) *StatusError {
	e := &StatusError{StatusCode: status}
	if err := json.Unmarshal(body, &e.Payload); err != nil || e.Payload.Error == "" {
		e.Payload = ErrorPayload{Error: http.StatusText(status)}
	}
	return e
}

func (e *StatusError) Error() string {
	if e.Payload.Details != "" {
		return fmt.Sprintf("backend returned %d: %s: %s", e.StatusCode, e.Payload.Error, e.Payload.Details)
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Payload.Error)
}

// QueryError exposes the backend's payload unchanged so cached error entries
// carry the original message.
func (e *StatusError) QueryError() *query.QueryError {
	return &query.QueryError{Message: e.Payload.Error, Details: e.Payload.Details}
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
