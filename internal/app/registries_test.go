package app

import (
	"context"
	"testing"
	"time"

	"github.com/antima/update-notifier/internal/fetch"
	"github.com/antima/update-notifier/internal/monitor"
	"github.com/antima/update-notifier/internal/notify"
	logx "github.com/antima/update-notifier/pkg/logx"
)

type staticFetcher struct{}

func (staticFetcher) Fetch(ctx context.Context, req fetch.Request) (*fetch.Result, error) {
	return &fetch.Result{Content: []byte("body"), StatusCode: 200}, nil
}

func newTestRegistries(t *testing.T) *Registries {
	t.Helper()
	notif := notify.New(notify.Config{}, nil, logx.Nop())
	r := NewRegistries(staticFetcher{}, notif, logx.Nop(), monitor.Options{})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		r.Shutdown(ctx)
	})
	return r
}

func TestForIsLazyAndStable(t *testing.T) {
	t.Parallel()

	r := newTestRegistries(t)

	a := r.For(1)
	if a == nil {
		t.Fatal("For returned nil")
	}
	if r.For(1) != a {
		t.Error("second For(1) returned a different registry")
	}
	if r.For(2) == a {
		t.Error("For(2) shares chat 1's registry")
	}
}

func TestShutdownStopsEveryChat(t *testing.T) {
	t.Parallel()

	notif := notify.New(notify.Config{}, nil, logx.Nop())
	r := NewRegistries(staticFetcher{}, notif, logx.Nop(), monitor.Options{})

	if err := r.For(1).Add("a", "http://example.com/a", time.Hour); err != nil {
		t.Fatalf("Add chat 1: %v", err)
	}
	if err := r.For(2).Add("b", "http://example.com/b", time.Hour); err != nil {
		t.Fatalf("Add chat 2: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if n := r.Shutdown(ctx); n != 2 {
		t.Fatalf("Shutdown = %d, want 2", n)
	}
}
