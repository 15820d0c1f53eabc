package monitor

import (
	"testing"
	"time"

	"github.com/antima/update-notifier/internal/fetch"
)

func TestBaselineNeverNotifies(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{content: []byte("stable")}
	d := newRecordingDispatcher()
	r := newTestRegistry(t, f, d, fastOpts())

	if err := r.Add("x", "http://example.com", 10*time.Millisecond); err != nil {
		t.Fatalf("Add: %v", err)
	}
	waitFor(t, "several cycles", func() bool { return f.callCount() >= 4 })

	select {
	case ch := <-d.changes:
		t.Fatalf("unexpected notification for unchanged content: %+v", ch)
	default:
	}
}

func TestChangeNotifiesExactlyOnce(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{content: []byte("v1")}
	d := newRecordingDispatcher()
	r := newTestRegistry(t, f, d, fastOpts())

	if err := r.Add("x", "http://example.com", 10*time.Millisecond); err != nil {
		t.Fatalf("Add: %v", err)
	}
	waitFor(t, "baseline", func() bool { return f.callCount() >= 1 })

	f.setContent([]byte("v2"))

	select {
	case ch := <-d.changes:
		if ch.Fingerprint != Fingerprint([]byte("v2")) {
			t.Fatalf("fingerprint = %s, want digest of v2", ch.Fingerprint.Short())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification")
	}

	// Content stays at v2: no further notifications.
	calls := f.callCount()
	waitFor(t, "more cycles", func() bool { return f.callCount() >= calls+3 })
	select {
	case ch := <-d.changes:
		t.Fatalf("duplicate notification: %+v", ch)
	default:
	}
}

func TestFetchErrorReportedAndAbsorbed(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{content: []byte("v1")}
	d := newRecordingDispatcher()
	r := newTestRegistry(t, f, d, fastOpts())

	if err := r.Add("x", "http://example.com", 10*time.Millisecond); err != nil {
		t.Fatalf("Add: %v", err)
	}
	waitFor(t, "baseline", func() bool { return f.callCount() >= 1 })

	f.setErr(&fetch.Error{Kind: fetch.KindHTTPStatus, URL: "http://example.com", StatusCode: 503})

	select {
	case is := <-d.issues:
		if is.Kind != IssueFetchHTTPStatus || is.StatusCode != 503 {
			t.Fatalf("issue = %+v, want http_status 503", is)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no issue report for failing fetch")
	}

	// The schedule survives: once the endpoint recovers with new content,
	// the change is detected against the pre-failure baseline.
	f.setContent([]byte("v2"))
	select {
	case ch := <-d.changes:
		if ch.Fingerprint != Fingerprint([]byte("v2")) {
			t.Fatalf("fingerprint = %s, want digest of v2", ch.Fingerprint.Short())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no notification after recovery")
	}
}

func TestNotModifiedIsQuiet(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{content: []byte("v1")}
	d := newRecordingDispatcher()
	r := newTestRegistry(t, f, d, fastOpts())

	if err := r.Add("x", "http://example.com", 10*time.Millisecond); err != nil {
		t.Fatalf("Add: %v", err)
	}
	waitFor(t, "baseline", func() bool { return f.callCount() >= 1 })

	f.setErr(fetch.ErrNotModified)
	calls := f.callCount()
	waitFor(t, "304 cycles", func() bool { return f.callCount() >= calls+3 })

	select {
	case ch := <-d.changes:
		t.Fatalf("notification on 304: %+v", ch)
	case is := <-d.issues:
		t.Fatalf("issue on 304: %+v", is)
	default:
	}
}

func TestFetchTimeoutClamp(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		configured time.Duration
		interval   time.Duration
		want       time.Duration
	}{
		{"below interval", 5 * time.Second, 30 * time.Second, 5 * time.Second},
		{"equal clamped", 30 * time.Second, 30 * time.Second, 24 * time.Second},
		{"above clamped", time.Minute, 10 * time.Second, 8 * time.Second},
		{"zero uses default then clamps", 0, 10 * time.Second, 8 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := fetchTimeout(tc.configured, tc.interval); got != tc.want {
				t.Errorf("fetchTimeout(%s, %s) = %s, want %s", tc.configured, tc.interval, got, tc.want)
			}
		})
	}
}
