// Package protocol defines the wire-level boundary types between the
// request assembler and the transport engine.
package protocol

import (
	"net/http"
	"time"
)

// WireRequest is a fully resolved request, ready to dispatch: every
// template token has been interpolated and auth applied.
type WireRequest struct {
	RequestID string
	Method    string
	URL       string
	Headers   map[string]string
	Body      []byte

	// Timeout bounds the whole round trip. Zero selects the engine default.
	Timeout time.Duration
}

// Response is the transport result. Exactly one of Body and BodyPath is
// populated: bodies at or above the engine's spillover threshold are
// streamed to a temporary file and carried by path.
type Response struct {
	StatusCode  int
	Status      string
	Headers     http.Header
	Body        []byte
	BodyPath    string
	ContentType string
	Duration    time.Duration
	Size        int64
	Proto       string
	TLS         bool
	Timing      *TimingDetail
}

// InMemory reports whether the body was kept in memory.
func (r *Response) InMemory() bool { return r.BodyPath == "" }

// TimingDetail breaks the round trip into phases. All values are
// non-negative and their sum never exceeds Total. Near-zero DNS, connect
// and TLS phases usually mean a reused connection, but that is a
// heuristic, not a guarantee.
type TimingDetail struct {
	DNSLookup    time.Duration
	TCPConnect   time.Duration
	TLSHandshake time.Duration
	TTFB         time.Duration
	Transfer     time.Duration
	Redirect     time.Duration
	Total        time.Duration
}
