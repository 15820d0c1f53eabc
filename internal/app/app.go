// Package app wires configuration, logging, the fetch client, the
// per-chat monitor registries, the notification pipeline and the
// telegram front-end into one runnable unit.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/antima/update-notifier/internal/bot"
	"github.com/antima/update-notifier/internal/config"
	"github.com/antima/update-notifier/internal/fetch"
	"github.com/antima/update-notifier/internal/monitor"
	"github.com/antima/update-notifier/internal/notify"
	"github.com/antima/update-notifier/internal/runtime/supervisor"
	logx "github.com/antima/update-notifier/pkg/logx"
)

type App struct {
	cfgPath string
	cfgm    *config.Manager

	logs *logx.Service
	log  logx.Logger

	sup *supervisor.Supervisor

	fetcher *fetch.Client
	notif   *notify.Service
	regs    *Registries
	bot     *bot.Bot
}

// New loads the config file and builds every component. Nothing is
// started yet; call Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", cfgPath, err)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgPath, err)
	}

	logs, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		logs:    logs,
		log:     log,
	}

	a.fetcher = fetch.NewClient(fetch.Config{
		MaxContentSize: cfg.Monitor.MaxContentSize,
		UserAgent:      cfg.Monitor.UserAgent,
	}, log)

	ncfg, err := notifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	// The sender (telegram bot) is bound below, after the bot exists.
	a.notif = notify.New(ncfg, nil, log)

	mopts, err := monitorOptions(cfg)
	if err != nil {
		return nil, err
	}
	a.regs = NewRegistries(a.fetcher, a.notif, log.With(logx.String("comp", "monitor")), mopts)

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	tg, err := bot.New(bot.Config{
		Token:        cfg.Telegram.Token,
		PollTimeout:  pollTimeout,
		OwnerUserIDs: cfg.Telegram.OwnerUserIDs,
	}, a.regs, log.With(logx.String("comp", "bot")))
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	a.bot = tg
	a.notif.SetSender(tg)

	return a, nil
}

// Start brings the app up: notifier workers, telegram polling, config
// watcher and the reload loop.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)

	a.notif.Start(a.sup.Context())
	if err := a.bot.Start(a.sup.Context()); err != nil {
		return err
	}

	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validateConfig(cfg)
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	updates := a.cfgm.Subscribe(1)
	a.sup.Go0("config.reload", func(ctx context.Context) {
		defer a.cfgm.Unsubscribe(updates)
		for {
			select {
			case <-ctx.Done():
				return
			case cfg, ok := <-updates:
				if !ok {
					return
				}
				a.applyConfig(cfg)
			}
		}
	})

	a.log.Info("started")
	return nil
}

// applyConfig pushes a freshly validated config into the running
// components. The fetch client's settings are fixed at startup; the
// rest (logging, owner allowlist, notifier limits, polling defaults)
// take effect immediately.
func (a *App) applyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}

	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	a.bot.SetOwners(cfg.Telegram.OwnerUserIDs)

	// validateConfig already ran, so these cannot fail here.
	if ncfg, err := notifierConfig(cfg); err == nil {
		a.notif.Apply(ncfg)
	}
	if mopts, err := monitorOptions(cfg); err == nil {
		a.regs.SetOptions(mopts)
	}

	a.log.Info("config reloaded")
}

// Stop shuts everything down in dependency order: telegram intake
// first, then the monitors, then the notifier (draining queued
// notifications), and finally the supervised goroutines.
func (a *App) Stop(ctx context.Context) {
	if a.bot != nil {
		_ = a.bot.Stop(ctx)
	}
	if a.regs != nil {
		n := a.regs.Shutdown(ctx)
		if n > 0 {
			a.log.Info("monitors stopped", logx.Int("count", n))
		}
	}
	if a.notif != nil {
		a.notif.Stop(ctx)
	}
	if a.sup != nil {
		a.sup.Cancel()
		_ = a.sup.Wait(ctx)
	}
	a.log.Info("stopped")
	_ = a.logs.Close()
}

func monitorOptions(cfg *config.Config) (monitor.Options, error) {
	def, err := config.ParseDurationField("monitor.default_interval", cfg.Monitor.DefaultInterval)
	if err != nil {
		return monitor.Options{}, err
	}
	min, err := config.ParseDurationField("monitor.min_interval", cfg.Monitor.MinInterval)
	if err != nil {
		return monitor.Options{}, err
	}
	ft, err := config.ParseDurationField("monitor.fetch_timeout", cfg.Monitor.FetchTimeout)
	if err != nil {
		return monitor.Options{}, err
	}
	return monitor.Options{
		DefaultInterval:     def,
		MinInterval:         min,
		FetchTimeout:        ft,
		TrackChanges:        cfg.Monitor.TrackChanges,
		TrackChangesMaxSize: cfg.Monitor.TrackChangesMaxSize,
	}, nil
}

func notifierConfig(cfg *config.Config) (notify.Config, error) {
	retryBase, err := config.ParseDurationField("notifier.retry_base", cfg.Notifier.RetryBase)
	if err != nil {
		return notify.Config{}, err
	}
	retryMaxDelay, err := config.ParseDurationField("notifier.retry_max_delay", cfg.Notifier.RetryMaxDelay)
	if err != nil {
		return notify.Config{}, err
	}
	dedupWindow, err := config.ParseDurationField("notifier.dedup_window", cfg.Notifier.DedupWindow)
	if err != nil {
		return notify.Config{}, err
	}
	return notify.Config{
		Workers:         cfg.Notifier.Workers,
		QueueSize:       cfg.Notifier.QueueSize,
		RatePerSec:      cfg.Notifier.RatePerSec,
		RetryMax:        cfg.Notifier.RetryMax,
		RetryBase:       retryBase,
		RetryMaxDelay:   retryMaxDelay,
		DedupWindow:     dedupWindow,
		DedupMaxEntries: cfg.Notifier.DedupMaxEntries,
	}, nil
}

// validateConfig rejects configs that would break running components;
// used both at startup and before a hot reload is committed.
func validateConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := monitorOptions(cfg); err != nil {
		return err
	}
	if _, err := notifierConfig(cfg); err != nil {
		return err
	}
	return nil
}
