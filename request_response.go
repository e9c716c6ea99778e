package adminclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// retryState tracks whether a call has already been replayed after a CSRF
// rejection. A call moves Initial -> Retried at most once, then Terminal.
type retryState int

const (
	stateInitial retryState = iota
	stateRetried
	stateTerminal
)

func (s retryState) String() string {
	switch s {
	case stateInitial:
		return "initial"
	case stateRetried:
		return "retried"
	default:
		return "terminal"
	}
}

// Call describes one logical request against the admin API. It is created per
// typed call and never shared.
type Call struct {
	Method  string
	Path    string
	Headers map[string]string
	Body    any // marshalled as JSON when non-nil

	state retryState
}

// Retried reports whether the call has been replayed after a token refresh.
func (c *Call) Retried() bool {
	return c.state != stateInitial
}

// Response is the raw outcome of a successful call.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Data       []byte
}

// Decode unmarshals the JSON payload into v.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Data) == 0 {
		return errors.New("adminclient: empty response body")
	}
	return json.Unmarshal(r.Data, v)
}

// HTTPError is returned when the backend answers with a status >= 400.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
}

// IsForbidden reports whether err carries a 403 from the backend.
func IsForbidden(err error) bool {
	return StatusCode(err) == http.StatusForbidden
}

// StatusCode extracts the HTTP status from err, or 0 when err is not an HTTPError.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// LoginRequest is the body of POST /api/admin/login/.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// VerifyPaymentRequest is the body of PATCH /api/registrations/{id}/verify/.
type VerifyPaymentRequest struct {
	PaymentVerified bool    `json:"payment_verified"`
	Notes           *string `json:"notes,omitempty"`
}
