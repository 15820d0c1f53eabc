package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

const sampleYAML = `
telegram:
  token: "123:abc"
  owner_user_ids: [10, 20]
  poll_timeout: "10s"
logging:
  level: "debug"
  console: true
monitor:
  default_interval: "15m"
  min_interval: "5s"
  track_changes: true
notifier:
  workers: 2
  dedup_window: "1m"
`

func TestParseYAML(t *testing.T) {
	t.Parallel()

	m := NewManager(writeFile(t, "config.yaml", sampleYAML))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Errorf("token = %q", cfg.Telegram.Token)
	}
	if len(cfg.Telegram.OwnerUserIDs) != 2 || cfg.Telegram.OwnerUserIDs[1] != 20 {
		t.Errorf("owner ids = %v", cfg.Telegram.OwnerUserIDs)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Monitor.DefaultInterval != "15m" || !cfg.Monitor.TrackChanges {
		t.Errorf("monitor = %+v", cfg.Monitor)
	}
	if cfg.Notifier.Workers != 2 || cfg.Notifier.DedupWindow != "1m" {
		t.Errorf("notifier = %+v", cfg.Notifier)
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()

	m := NewManager(writeFile(t, "config.json",
		`{"telegram":{"token":"t"},"logging":{"level":"info","console":true,"file":{"enabled":false,"path":""}},"monitor":{},"notifier":{}}`))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Telegram.Token != "t" {
		t.Errorf("token = %q", cfg.Telegram.Token)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	m := NewManager(writeFile(t, "config.yaml", "telegram:\n  token: t\n  surprise: 1\n"))
	if _, err := m.Parse(); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()

	m := NewManager(writeFile(t, "config.json", `{"telegram":{"token":"t"}} {"extra":true}`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("trailing data accepted")
	}
}

func TestLoadCommitsAndGet(t *testing.T) {
	t.Parallel()

	m := NewManager(writeFile(t, "config.yaml", sampleYAML))
	if m.Get() != nil {
		t.Fatal("Get before Load returned a config")
	}
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Get() != cfg {
		t.Fatal("Get did not return the committed config")
	}
}

func TestSubscribeReceivesNewestOnOverflow(t *testing.T) {
	t.Parallel()

	m := NewManager("unused")
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	first := &Config{Telegram: TelegramConfig{Token: "first"}}
	second := &Config{Telegram: TelegramConfig{Token: "second"}}
	m.publish(first)
	m.publish(second) // drops the stale one

	select {
	case got := <-ch:
		if got.Telegram.Token != "second" {
			t.Fatalf("received %q, want the newest config", got.Telegram.Token)
		}
	case <-time.After(time.Second):
		t.Fatal("no config received")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()

	m := NewManager("unused")
	ch := m.Subscribe(1)
	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel still open after Unsubscribe")
	}
	// Publishing after unsubscribe must not panic.
	m.publish(&Config{})
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"  ", 0, false},
		{"30s", 30 * time.Second, false},
		{"15m", 15 * time.Minute, false},
		{"-1s", 0, true},
		{"bogus", 0, true},
		{"10", 0, true}, // bare numbers are not durations here
	}
	for _, tc := range cases {
		got, err := ParseDurationField("test.field", tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseDurationField(%q) = %s, want error", tc.raw, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDurationField(%q): %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseDurationField(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()

	if got, err := ParseDurationOrDefault("f", "", time.Minute); err != nil || got != time.Minute {
		t.Errorf("empty = (%s, %v), want default", got, err)
	}
	if got, err := ParseDurationOrDefault("f", "30s", time.Minute); err != nil || got != 30*time.Second {
		t.Errorf("set = (%s, %v), want 30s", got, err)
	}
	if _, err := ParseDurationOrDefault("f", "bogus", time.Minute); err == nil {
		t.Error("invalid duration accepted")
	}
}
