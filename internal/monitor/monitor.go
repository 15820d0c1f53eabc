// Package monitor implements the core scheduler: a dynamically mutable
// set of named monitors, each polling one URL on its own cadence,
// detecting content changes by fingerprint and emitting notification
// events. All structural mutation goes through the Registry and is
// serialized; each monitor's observed state is owned by its own runner.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/antima/update-notifier/internal/fetch"
)

// Monitor pairs a name/URL/interval with the task currently polling it.
// Name and URL are immutable after creation; changing the URL is
// remove+add. A new interval replaces the task (see Registry.SetInterval)
// but keeps the observed state, so a reschedule never re-notifies.
type Monitor struct {
	name     string
	url      string
	interval time.Duration

	// cancel stops the runner; done is closed when it has fully exited.
	// Exactly one live runner exists per Monitor at any time.
	cancel context.CancelFunc
	done   chan struct{}

	st *state
}

func (m *Monitor) Name() string            { return m.name }
func (m *Monitor) URL() string             { return m.url }
func (m *Monitor) Interval() time.Duration { return m.interval }

// state is the runner-observed side of a monitor. Only the monitor's own
// runner writes it; the mutex exists because a replaced runner may finish
// one last in-flight cycle while its successor starts (allowed by the
// cancellation contract).
type state struct {
	mu sync.Mutex

	fingerprint  Digest
	etag         string
	lastModified string

	// lastContent is kept only when change tracking is enabled and the
	// body fits the configured cap; used for diff summaries.
	lastContent []byte
}

// Entry is a read-only snapshot row returned by Registry.List.
type Entry struct {
	Name     string
	URL      string
	Interval time.Duration
}

// Change describes one detected content change.
type Change struct {
	Name        string
	URL         string
	Fingerprint Digest
	// Summary is a short human description, e.g. "+3/-1 lines" when
	// change tracking is on, otherwise a generic phrase.
	Summary  string
	Detected time.Time
}

// IssueKind classifies a non-fatal runtime problem on a monitor's cycle.
type IssueKind string

const (
	IssueFetchTimeout    IssueKind = "fetch_timeout"
	IssueFetchConnection IssueKind = "fetch_connection"
	IssueFetchHTTPStatus IssueKind = "fetch_http_status"
)

// Issue is an observability report; it never affects the schedule.
type Issue struct {
	Name       string
	URL        string
	Kind       IssueKind
	StatusCode int // set for IssueFetchHTTPStatus
	Err        error
}

// Dispatcher delivers change notifications and issue reports out-of-band.
// Implementations must be safe for concurrent use. A Notify error is a
// delivery problem, not a detection problem: the caller logs it and moves
// on without rolling back fingerprint state.
type Dispatcher interface {
	Notify(ctx context.Context, ch Change) error
	ReportIssue(ctx context.Context, is Issue)
}

// Fetcher retrieves current content for a URL with a bounded timeout.
type Fetcher interface {
	Fetch(ctx context.Context, req fetch.Request) (*fetch.Result, error)
}
