package monitor

import (
	"context"
	"strings"
	"sync"
	"time"

	logx "github.com/antima/update-notifier/pkg/logx"
)

// Options carries polling defaults shared by every monitor in a Registry.
type Options struct {
	// DefaultInterval applies when Add is called with interval 0 (15m).
	DefaultInterval time.Duration
	// MinInterval rejects intervals that would hammer the polled server (5s).
	MinInterval time.Duration
	// FetchTimeout bounds each fetch; always clamped below the monitor's
	// interval so a cycle cannot overlap the next tick (30s).
	FetchTimeout time.Duration

	TrackChanges        bool
	TrackChangesMaxSize int
}

func (o Options) withDefaults() Options {
	if o.DefaultInterval <= 0 {
		o.DefaultInterval = 15 * time.Minute
	}
	if o.MinInterval <= 0 {
		o.MinInterval = 5 * time.Second
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 30 * time.Second
	}
	if o.TrackChangesMaxSize <= 0 {
		o.TrackChangesMaxSize = 256 << 10
	}
	return o
}

// Registry is the single source of truth for "what is currently being
// watched". A name present in the map always has exactly one live runner
// backing it; a name absent has none. One mutex serializes structural
// mutation (insert/delete/replace-task); it is never held across a fetch.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Monitor
	order   []string // insertion order, for deterministic listing

	ctx        context.Context // parent of every runner context
	fetcher    Fetcher
	dispatcher Dispatcher
	log        logx.Logger
	opts       Options

	wg sync.WaitGroup
}

// NewRegistry builds an empty registry. Runners spawned by Add live under
// ctx: cancelling it stops every monitor.
func NewRegistry(ctx context.Context, fetcher Fetcher, dispatcher Dispatcher, log logx.Logger, opts Options) *Registry {
	return &Registry{
		entries:    make(map[string]*Monitor),
		ctx:        ctx,
		fetcher:    fetcher,
		dispatcher: dispatcher,
		log:        log,
		opts:       opts.withDefaults(),
	}
}

// SetOptions swaps the polling defaults. Running monitors pick up the new
// fetch/tracking settings on their next cycle; intervals are untouched.
func (r *Registry) SetOptions(opts Options) {
	r.mu.Lock()
	r.opts = opts.withDefaults()
	r.mu.Unlock()
}

func (r *Registry) options() Options {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opts
}

// normalizeInterval applies the default and the floor.
func (r *Registry) normalizeInterval(interval time.Duration) (time.Duration, error) {
	opts := r.options()
	if interval == 0 {
		return opts.DefaultInterval, nil
	}
	if interval < opts.MinInterval {
		return 0, ErrInvalidInterval
	}
	return interval, nil
}

// Add registers a new monitor and starts its polling task.
// interval 0 means "use the default". Fails without mutation when the
// name is taken (ErrNameConflict) or the interval is below the floor.
func (r *Registry) Add(name, url string, interval time.Duration) error {
	name = strings.TrimSpace(name)
	url = strings.TrimSpace(url)
	if name == "" || url == "" {
		return ErrInvalidName
	}
	iv, err := r.normalizeInterval(interval)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return ErrNameConflict
	}

	m := &Monitor{name: name, url: url, interval: iv, st: &state{}}
	r.startLocked(m)
	r.entries[name] = m
	r.order = append(r.order, name)

	r.log.Info("monitor added",
		logx.String("name", name),
		logx.String("url", url),
		logx.Duration("interval", iv))
	return nil
}

// Remove cancels the monitor's task and deletes the entry. After it
// returns no new cycle starts for the name; one already in flight may
// still finish (bounded by the fetch timeout).
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	m, ok := r.entries[name]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	m.cancel()
	delete(r.entries, name)
	r.dropFromOrder(name)
	r.mu.Unlock()

	r.log.Info("monitor removed", logx.String("name", name))
	return nil
}

// List returns a snapshot in insertion order. It never blocks on any
// network activity.
func (r *Registry) List() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		m, ok := r.entries[name]
		if !ok {
			continue
		}
		out = append(out, Entry{Name: m.name, URL: m.url, Interval: m.interval})
	}
	return out
}

// Interval returns the monitor's current polling interval.
func (r *Registry) Interval(name string) (time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.entries[name]
	if !ok {
		return 0, ErrNotFound
	}
	return m.interval, nil
}

// SetInterval replaces the monitor's schedule: the old task is cancelled
// and a new one spawned under the same lock, sharing the observed state,
// so the recorded fingerprint survives and no spurious notification
// follows a reschedule. The old and new task never both wait for a tick.
func (r *Registry) SetInterval(name string, interval time.Duration) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}
	iv, err := r.normalizeInterval(interval)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.entries[name]
	if !ok {
		return ErrNotFound
	}
	old.cancel()

	m := &Monitor{name: old.name, url: old.url, interval: iv, st: old.st}
	r.startLocked(m)
	r.entries[name] = m
	// Position in the listing is kept: the name does not move.

	r.log.Info("monitor rescheduled",
		logx.String("name", name),
		logx.Duration("interval", iv))
	return nil
}

// StopAll cancels every task and empties the registry, returning how many
// monitors were stopped. The registry stays usable afterwards.
func (r *Registry) StopAll() int {
	r.mu.Lock()
	n := len(r.entries)
	for _, m := range r.entries {
		m.cancel()
	}
	r.entries = make(map[string]*Monitor)
	r.order = nil
	r.mu.Unlock()

	if n > 0 {
		r.log.Info("all monitors stopped", logx.Int("count", n))
	}
	return n
}

// Shutdown stops everything and waits for runners to exit, bounded by ctx.
func (r *Registry) Shutdown(ctx context.Context) int {
	n := r.StopAll()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		r.log.Warn("shutdown wait cancelled; runners may still be finishing a cycle")
	}
	return n
}

// Len reports the number of registered monitors.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// startLocked spawns the runner for m. Caller holds r.mu.
func (r *Registry) startLocked(m *Monitor) {
	mctx, cancel := context.WithCancel(r.ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(mctx, m)
	}()
}

func (r *Registry) dropFromOrder(name string) {
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
