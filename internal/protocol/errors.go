package protocol

import "errors"

// ErrInvalidURL reports a request URL that could not be parsed or lacks a
// scheme and host.
var ErrInvalidURL = errors.New("invalid URL")

// ErrTimeout reports that the round trip exceeded its deadline.
var ErrTimeout = errors.New("request timed out")

// NetworkError wraps a transport-level failure (dial, TLS, read).
type NetworkError struct {
	Cause error
}

func (e *NetworkError) Error() string { return "network error: " + e.Cause.Error() }
func (e *NetworkError) Unwrap() error { return e.Cause }
