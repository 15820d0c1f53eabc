package notify

import (
	"context"
	"fmt"
	"strconv"

	"github.com/antima/update-notifier/internal/monitor"
	logx "github.com/antima/update-notifier/pkg/logx"
)

// Target binds the shared pipeline to one chat; it is the
// monitor.Dispatcher handed to that chat's registry.
type Target struct {
	svc    *Service
	chatID int64
}

// For returns a dispatcher delivering to chatID.
func (s *Service) For(chatID int64) *Target {
	return &Target{svc: s, chatID: chatID}
}

// Notify queues one change notification. Duplicate changes (same chat,
// monitor and fingerprint) inside the dedup window are suppressed, which
// keeps an at-least-once pipeline from double-announcing one change.
func (t *Target) Notify(ctx context.Context, ch monitor.Change) error {
	text := fmt.Sprintf("🔔 updated: %s\n%s", ch.Name, ch.URL)
	if ch.Summary != "" {
		text += "\n" + ch.Summary
	}
	key := hashKey(strconv.FormatInt(t.chatID, 10), ch.Name, string(ch.Fingerprint))
	return t.svc.enqueue(t.chatID, text, key)
}

// ReportIssue queues a fetch problem report. Best-effort: a full queue or
// stopped pipeline only logs. Issues dedup on (chat, monitor, kind) so a
// flapping endpoint doesn't flood the chat every tick.
func (t *Target) ReportIssue(ctx context.Context, is monitor.Issue) {
	var text string
	switch is.Kind {
	case monitor.IssueFetchHTTPStatus:
		text = fmt.Sprintf("⚠️ %s: %s answered status %d", is.Name, is.URL, is.StatusCode)
	case monitor.IssueFetchTimeout:
		text = fmt.Sprintf("⚠️ %s: fetching %s timed out", is.Name, is.URL)
	default:
		text = fmt.Sprintf("⚠️ %s: fetching %s failed", is.Name, is.URL)
	}
	key := hashKey(strconv.FormatInt(t.chatID, 10), is.Name, string(is.Kind), strconv.Itoa(is.StatusCode))
	if err := t.svc.enqueue(t.chatID, text, key); err != nil {
		t.svc.log.Debug("issue report dropped",
			logx.String("monitor", is.Name),
			logx.Err(err))
	}
}
