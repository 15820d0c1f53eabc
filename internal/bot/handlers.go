package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/antima/update-notifier/internal/monitor"
	logx "github.com/antima/update-notifier/pkg/logx"
)

const helpText = `update-notifier: monitor urls and receive updates via telegram
/help -> show this message
/add <name> <url> [interval] -> start monitoring the url identified by name, interval default is 15 mins
/remove <name> -> remove an url under monitoring, identified by its name
/list -> list all the urls under monitoring
/timer <name> -> return the current interval for the url identified by name
/set_timer <name> <interval> -> reset the monitor for the url with the new interval
/end -> stop monitoring every url

intervals are Go durations ("90s", "15m") or plain seconds ("900")`

func (a *Bot) registerHandlers() {
	handle := func(route string, fn func(chatID int64, args []string) string) {
		a.bot.Handle(route, func(c tele.Context) error {
			if c.Chat() == nil || c.Sender() == nil {
				return nil
			}
			if !a.allowed(c.Sender().ID) {
				a.log.Debug("command from non-owner ignored",
					logx.String("route", route),
					logx.Int64("user_id", c.Sender().ID))
				return nil
			}
			reply := fn(c.Chat().ID, c.Args())
			if reply == "" {
				return nil
			}
			return c.Send(reply, &tele.SendOptions{DisableWebPagePreview: true})
		})
	}

	handle("/help", func(int64, []string) string { return helpText })
	handle("/add", a.cmdAdd)
	handle("/remove", a.cmdRemove)
	handle("/list", a.cmdList)
	handle("/timer", a.cmdTimer)
	handle("/set_timer", a.cmdSetTimer)
	handle("/end", a.cmdEnd)
}

func (a *Bot) cmdAdd(chatID int64, args []string) string {
	if len(args) < 2 {
		return "you have to pass a name and a url to add"
	}
	name, url := args[0], args[1]

	var interval time.Duration
	if len(args) >= 3 {
		var err error
		interval, err = parseInterval(args[2])
		if err != nil {
			return "interval must be a positive duration, e.g. 90s or 15m"
		}
	}

	err := a.regs.For(chatID).Add(name, url, interval)
	switch {
	case err == nil:
		return "monitoring: " + name
	case errors.Is(err, monitor.ErrNameConflict):
		return "already monitoring: " + name
	case errors.Is(err, monitor.ErrInvalidInterval):
		return "interval is too small"
	default:
		return "could not add " + name + ": " + err.Error()
	}
}

func (a *Bot) cmdRemove(chatID int64, args []string) string {
	if len(args) < 1 {
		return "you have to pass the name of an url to remove"
	}
	name := args[0]
	if err := a.regs.For(chatID).Remove(name); err != nil {
		return "no active monitor for: " + name
	}
	return "stopping the monitor for: " + name
}

func (a *Bot) cmdList(chatID int64, _ []string) string {
	entries := a.regs.For(chatID).List()
	if len(entries) == 0 {
		return "no urls are being monitored"
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s -> %s (every %s)", e.Name, e.URL, e.Interval)
	}
	return b.String()
}

func (a *Bot) cmdTimer(chatID int64, args []string) string {
	if len(args) < 1 {
		return "you have to pass the name of an url"
	}
	name := args[0]
	iv, err := a.regs.For(chatID).Interval(name)
	if err != nil {
		return "no such url under monitoring"
	}
	return fmt.Sprintf("current timer for %s: %s", name, iv)
}

func (a *Bot) cmdSetTimer(chatID int64, args []string) string {
	if len(args) < 2 {
		return "you have to pass the name of an url and a positive interval"
	}
	name := args[0]
	interval, err := parseInterval(args[1])
	if err != nil {
		return "interval must be a positive duration, e.g. 90s or 15m"
	}
	err = a.regs.For(chatID).SetInterval(name, interval)
	switch {
	case err == nil:
		return fmt.Sprintf("new timer for %s: %s", name, interval)
	case errors.Is(err, monitor.ErrNotFound):
		return "no such url under monitoring"
	case errors.Is(err, monitor.ErrInvalidInterval):
		return "interval is too small"
	default:
		return "could not set timer for " + name + ": " + err.Error()
	}
}

func (a *Bot) cmdEnd(chatID int64, _ []string) string {
	n := a.regs.For(chatID).StopAll()
	if n == 0 {
		return "no urls are being monitored"
	}
	return fmt.Sprintf("stopped monitoring %d url(s)", n)
}

// parseInterval accepts Go durations ("90s", "15m") and, for
// compatibility with the original bot, bare integers meaning seconds.
func parseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty interval")
	}
	if secs, err := strconv.Atoi(s); err == nil {
		if secs <= 0 {
			return 0, errors.New("interval must be positive")
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("interval must be positive")
	}
	return d, nil
}
