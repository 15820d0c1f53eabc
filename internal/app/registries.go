package app

import (
	"context"
	"sync"

	"github.com/antima/update-notifier/internal/monitor"
	"github.com/antima/update-notifier/internal/notify"
	logx "github.com/antima/update-notifier/pkg/logx"
)

// Registries owns one monitor.Registry per chat, created lazily on first
// use. Each registry's dispatcher is bound to its chat, so a change on
// chat A's monitor can only ever notify chat A.
type Registries struct {
	mu   sync.Mutex
	byID map[int64]*monitor.Registry

	// root is the parent context for every runner; cancelling it (via
	// Shutdown) stops all polling across all chats.
	root   context.Context
	cancel context.CancelFunc

	fetcher monitor.Fetcher
	notif   *notify.Service
	log     logx.Logger
	opts    monitor.Options
}

func NewRegistries(fetcher monitor.Fetcher, notif *notify.Service, log logx.Logger, opts monitor.Options) *Registries {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registries{
		byID:    make(map[int64]*monitor.Registry),
		root:    ctx,
		cancel:  cancel,
		fetcher: fetcher,
		notif:   notif,
		log:     log,
		opts:    opts,
	}
}

// For returns the chat's registry, creating it on first use.
func (r *Registries) For(chatID int64) *monitor.Registry {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.byID[chatID]
	if !ok {
		reg = monitor.NewRegistry(
			r.root,
			r.fetcher,
			r.notif.For(chatID),
			r.log.With(logx.Int64("chat_id", chatID)),
			r.opts,
		)
		r.byID[chatID] = reg
	}
	return reg
}

// SetOptions fans new polling defaults out to every registry (hot reload).
func (r *Registries) SetOptions(opts monitor.Options) {
	r.mu.Lock()
	r.opts = opts
	regs := make([]*monitor.Registry, 0, len(r.byID))
	for _, reg := range r.byID {
		regs = append(regs, reg)
	}
	r.mu.Unlock()

	for _, reg := range regs {
		reg.SetOptions(opts)
	}
}

// Shutdown stops every monitor in every chat and waits, bounded by ctx.
// Returns the number of monitors stopped.
func (r *Registries) Shutdown(ctx context.Context) int {
	r.mu.Lock()
	regs := make([]*monitor.Registry, 0, len(r.byID))
	for _, reg := range r.byID {
		regs = append(regs, reg)
	}
	r.byID = make(map[int64]*monitor.Registry)
	r.mu.Unlock()

	total := 0
	for _, reg := range regs {
		total += reg.Shutdown(ctx)
	}
	r.cancel()
	return total
}
