package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingAPIKey is returned when no bearer token is provided.
	ErrMissingAPIKey = errors.New("API key is required")

	// ErrMissingBaseURL is returned when no base URL is provided.
	ErrMissingBaseURL = errors.New("base URL is required")

	// ErrNoChoices is returned when the response has no choices.
	ErrNoChoices = errors.New("no choices in response")
)

// StatusError reports a non-200 response from the completions endpoint.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("HTTP error: %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP error: %d: %s", e.StatusCode, e.Detail)
}

// ProtocolError reports a 200 response whose body could not be decoded.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("malformed response: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// IsProtocol reports whether err is a protocol-level failure: an undecodable
// body or a response without choices.
func IsProtocol(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe) || errors.Is(err, ErrNoChoices)
}
