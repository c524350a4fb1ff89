package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthenticated is returned when a private endpoint is called on a
// client that has no credentials.
var ErrUnauthenticated = errors.New("private endpoint requires credentials")

var errMalformedResponse = errors.New("malformed JSON response")

// TransportError reports a failed exchange request: no response, a non-2xx
// status, or a body that is not valid JSON. Body holds the raw response for
// diagnosis.
type TransportError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode == 0:
		return fmt.Sprintf("%s %s: request failed: %v", e.Method, e.Path, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: status %d: %v", e.Method, e.Path, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message())
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Message extracts the exchange's {"message": ...} field, falling back to
// the raw body.
func (e *TransportError) Message() string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(e.Body), &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return e.Body
}

// IsAuthError reports whether err is a request rejected with 401 or 403,
// which is how the exchange signals a bad key, passphrase or signature.
func IsAuthError(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	return te.StatusCode == http.StatusUnauthorized || te.StatusCode == http.StatusForbidden
}

// retryable reports whether an idempotent request that failed with err may
// be sent again.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	switch {
	case te.StatusCode == 0:
		return true
	case te.StatusCode == http.StatusTooManyRequests:
		return true
	case te.StatusCode >= 500:
		return true
	default:
		return false
	}
}
