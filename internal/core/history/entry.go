package history

import "time"

// Entry is one execution record. RequestID is a foreign reference to the
// stored request that produced it, not an owning edge.
type Entry struct {
	ID         int64
	RequestID  string
	Method     string
	URL        string
	StatusCode int
	Duration   time.Duration
	Size       int64
	Timestamp  time.Time
}
