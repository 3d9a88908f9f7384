// Package errs provides the trusted error type the node's handlers use to
// surface client-facing failures.
package errs

import (
	"errors"
	"fmt"
)

// Response is the document returned to the caller when a request fails.
type Response struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Trusted wraps an error whose message is safe to return to the caller
// together with the HTTP status code the middleware should respond with.
// Anything else that reaches the error middleware is logged and masked as
// an internal server error.
type Trusted struct {
	Err    error
	Status int
}

// NewTrusted wraps the specified error so its message flows back to the
// caller with the given status.
func NewTrusted(err error, status int) error {
	return &Trusted{
		Err:    err,
		Status: status,
	}
}

// NewTrustedf constructs a trusted error from a format string.
func NewTrustedf(status int, format string, args ...any) error {
	return &Trusted{
		Err:    fmt.Errorf(format, args...),
		Status: status,
	}
}

// Error implements the error interface using the wrapped error's message.
func (t *Trusted) Error() string {
	return t.Err.Error()
}

// IsTrusted reports whether a trusted error exists in the chain.
func IsTrusted(err error) bool {
	var t *Trusted
	return errors.As(err, &t)
}

// GetTrusted extracts the trusted error from the chain. It returns nil when
// the chain carries none.
func GetTrusted(err error) *Trusted {
	var t *Trusted
	if !errors.As(err, &t) {
		return nil
	}

	return t
}
