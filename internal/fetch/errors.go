package fetch

import (
	"errors"
	"fmt"
)

// ErrNotModified is returned when the server answers 304 to a conditional GET.
// Callers should treat it as "content unchanged", not as a failure.
var ErrNotModified = errors.New("content not modified")

// Kind classifies a failed fetch.
type Kind string

const (
	KindTimeout    Kind = "timeout"
	KindConnection Kind = "connection"
	KindHTTPStatus Kind = "http_status"
)

// Error is a structured fetch failure. The scheduler maps every Kind
// uniformly to "no change this cycle, report and continue", so the split
// exists for reporting, not for control flow.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int // set for KindHTTPStatus
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	case KindTimeout:
		return fmt.Sprintf("fetch %s: timeout: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }
