// Package bot is the Telegram front-end: it parses user commands into
// registry operations and renders the replies. It also implements the
// outbound notify.Sender used by the notification pipeline.
package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/antima/update-notifier/internal/monitor"
	logx "github.com/antima/update-notifier/pkg/logx"
)

type Config struct {
	Token        string
	PollTimeout  time.Duration
	OwnerUserIDs []int64
}

// Registries hands out the per-chat monitor registry. Monitors are scoped
// to the chat that created them; two chats can use the same name freely.
type Registries interface {
	For(chatID int64) *monitor.Registry
}

type Bot struct {
	cfg  Config
	log  logx.Logger
	bot  *tele.Bot
	regs Registries

	ownerMu sync.Mutex
	owners  []int64

	runMu     sync.Mutex
	running   bool
	runCancel context.CancelFunc
	runWG     sync.WaitGroup
}

func New(cfg Config, regs Registries, log logx.Logger) (*Bot, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	a := &Bot{cfg: cfg, log: log, bot: b, regs: regs, owners: cfg.OwnerUserIDs}
	a.registerHandlers()
	return a, nil
}

// SetOwners swaps the allowlist (hot reload). Empty means everyone.
func (a *Bot) SetOwners(ids []int64) {
	a.ownerMu.Lock()
	a.owners = append([]int64(nil), ids...)
	a.ownerMu.Unlock()
}

func (a *Bot) allowed(userID int64) bool {
	a.ownerMu.Lock()
	defer a.ownerMu.Unlock()
	if len(a.owners) == 0 {
		return true
	}
	for _, id := range a.owners {
		if id == userID {
			return true
		}
	}
	return false
}

func (a *Bot) Start(ctx context.Context) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	rctx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel
	a.runWG.Add(1)
	a.runMu.Unlock()

	// Best-effort: publish the /menu command list.
	if err := a.bot.SetCommands(menuCommands()); err != nil {
		a.log.Warn("setMyCommands failed", logx.Err(err))
	}

	go func() {
		defer a.runWG.Done()
		// Ensure we stop telebot when context is cancelled.
		go func() {
			<-rctx.Done()
			a.bot.Stop()
		}()
		a.log.Info("polling started")
		a.bot.Start() // blocks until Stop() called
	}()

	return nil
}

func (a *Bot) Stop(ctx context.Context) error {
	// Best-effort graceful stop. Never block shutdown for too long on Telegram long-poll.
	a.runMu.Lock()
	cancel := a.runCancel
	a.runCancel = nil
	wasRunning := a.running
	a.running = false
	a.runMu.Unlock()

	if !wasRunning {
		return nil
	}
	if cancel != nil {
		cancel()
	}
	go a.bot.Stop()

	done := make(chan struct{})
	go func() {
		a.runWG.Wait()
		close(done)
	}()

	// Grace window: keep shutdown snappy even if getUpdates long-poll is still waiting.
	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		rem := time.Until(dl)
		if rem > 0 && rem < grace {
			grace = rem
		}
	}
	t := time.NewTimer(grace)
	defer t.Stop()

	select {
	case <-done:
		a.log.Info("polling stopped")
		return nil
	case <-ctx.Done():
		a.log.Warn("telegram stop cancelled", logx.Err(ctx.Err()))
		return ctx.Err()
	case <-t.C:
		a.log.Warn("telegram stop grace elapsed; continuing shutdown")
		return nil
	}
}

// SendText implements notify.Sender.
func (a *Bot) SendText(ctx context.Context, chatID int64, text string) error {
	_, err := a.bot.Send(&tele.Chat{ID: chatID}, text, &tele.SendOptions{DisableWebPagePreview: true})
	return err
}

func menuCommands() []tele.Command {
	return []tele.Command{
		{Text: "add", Description: "start monitoring a url: /add <name> <url> [interval]"},
		{Text: "remove", Description: "stop monitoring a url by name"},
		{Text: "list", Description: "list monitored urls"},
		{Text: "timer", Description: "show the interval for a monitor"},
		{Text: "set_timer", Description: "change the interval for a monitor"},
		{Text: "end", Description: "stop monitoring every url"},
		{Text: "help", Description: "show usage"},
	}
}
