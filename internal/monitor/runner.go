package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/antima/update-notifier/internal/diff"
	"github.com/antima/update-notifier/internal/fetch"
	logx "github.com/antima/update-notifier/pkg/logx"
)

// run is the per-monitor task loop. One goroutine per monitor: a slow or
// failing endpoint never delays anyone else's schedule.
//
// The idle wait aborts immediately on cancellation. A cycle already in
// flight is allowed to finish (bounded by the fetch timeout); callers of
// Remove/SetInterval tolerate at most one extra fingerprint update or
// notification racing their call.
func (r *Registry) run(ctx context.Context, m *Monitor) {
	defer close(m.done)

	log := r.log.With(logx.String("monitor", m.name))
	log.Debug("runner started", logx.Duration("interval", m.interval))

	// Establish the baseline right away on a monitor's very first start.
	// A replacement runner (reschedule) finds a fingerprint already
	// recorded and goes straight to the idle wait.
	m.st.mu.Lock()
	hasBaseline := !m.st.fingerprint.IsZero()
	m.st.mu.Unlock()
	if !hasBaseline {
		if ctx.Err() != nil {
			return
		}
		r.cycle(ctx, m, log)
	}

	t := time.NewTimer(m.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug("runner stopped")
			return
		case <-t.C:
		}
		r.cycle(ctx, m, log)
		t.Reset(m.interval)
	}
}

// cycle runs one fetch-evaluate-(notify) pass.
//
// It deliberately detaches from the runner context: cancellation is a
// request honored at the next suspension point, never a kill of
// in-progress I/O. The fetch timeout bounds how long a detached cycle
// can outlive its runner.
func (r *Registry) cycle(ctx context.Context, m *Monitor, log logx.Logger) {
	opts := r.options()
	cctx := context.WithoutCancel(ctx)

	m.st.mu.Lock()
	prevETag, prevLastMod := m.st.etag, m.st.lastModified
	m.st.mu.Unlock()

	res, err := r.fetcher.Fetch(cctx, fetch.Request{
		URL:          m.url,
		Timeout:      fetchTimeout(opts.FetchTimeout, m.interval),
		ETag:         prevETag,
		LastModified: prevLastMod,
	})

	if errors.Is(err, fetch.ErrNotModified) {
		// Server-confirmed unchanged; cheaper than hashing the body.
		log.Debug("not modified")
		return
	}
	if err != nil {
		r.reportFetchError(cctx, m, log, err)
		return
	}

	fp := Fingerprint(res.Content)

	m.st.mu.Lock()
	prev := m.st.fingerprint
	m.st.fingerprint = fp
	m.st.etag = res.ETag
	m.st.lastModified = res.LastModified

	summary := ""
	if opts.TrackChanges {
		if !prev.IsZero() && prev != fp &&
			m.st.lastContent != nil && len(res.Content) <= opts.TrackChangesMaxSize {
			summary = diff.Summarize(m.st.lastContent, res.Content).String()
		}
		if len(res.Content) <= opts.TrackChangesMaxSize {
			m.st.lastContent = res.Content
		} else {
			m.st.lastContent = nil
		}
	}
	m.st.mu.Unlock()

	switch {
	case prev.IsZero():
		// First successful fetch: baseline only, never a notification.
		log.Info("baseline recorded", logx.String("fingerprint", fp.Short()))
	case prev == fp:
		log.Debug("unchanged", logx.String("fingerprint", fp.Short()))
	default:
		log.Info("content changed",
			logx.String("old", prev.Short()),
			logx.String("new", fp.Short()))
		ch := Change{
			Name:        m.name,
			URL:         m.url,
			Fingerprint: fp,
			Summary:     summary,
			Detected:    time.Now(),
		}
		// Delivery failure never rolls back the fingerprint: the content
		// genuinely changed, only the messenger stumbled.
		if err := r.dispatcher.Notify(cctx, ch); err != nil {
			log.Warn("notification delivery failed", logx.Err(err))
		}
	}
}

func (r *Registry) reportFetchError(ctx context.Context, m *Monitor, log logx.Logger, err error) {
	is := Issue{Name: m.name, URL: m.url, Kind: IssueFetchConnection, Err: err}
	var fe *fetch.Error
	if errors.As(err, &fe) {
		switch fe.Kind {
		case fetch.KindTimeout:
			is.Kind = IssueFetchTimeout
		case fetch.KindHTTPStatus:
			is.Kind = IssueFetchHTTPStatus
			is.StatusCode = fe.StatusCode
		}
	}
	log.Warn("fetch failed; will retry next tick",
		logx.String("kind", string(is.Kind)),
		logx.Err(err))
	r.dispatcher.ReportIssue(ctx, is)
}

// fetchTimeout keeps the timeout strictly below the interval so a cycle
// can never overlap the next tick.
func fetchTimeout(configured, interval time.Duration) time.Duration {
	t := configured
	if t <= 0 {
		t = 30 * time.Second
	}
	if t >= interval {
		t = interval * 4 / 5
	}
	return t
}
