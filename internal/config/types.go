package config

// Config is the whole on-disk configuration.
//
// All durations are Go duration strings (e.g. "30s", "15m").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Monitor  MonitorConfig  `json:"monitor"`
	Notifier NotifierConfig `json:"notifier"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// OwnerUserIDs restricts commands to the listed users when non-empty.
	OwnerUserIDs []int64 `json:"owner_user_ids,omitempty"`
	// PollTimeout is the long-poll timeout (default "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// MonitorConfig controls per-monitor polling defaults.
//
// Defaults (when fields are omitted/zero):
//   - default_interval: "15m"
//   - min_interval: "5s"
//   - fetch_timeout: "30s" (always clamped below a monitor's interval)
//   - max_content_size: 5 MiB
//   - track_changes_max_size: 256 KiB
type MonitorConfig struct {
	DefaultInterval string `json:"default_interval,omitempty"`
	MinInterval     string `json:"min_interval,omitempty"`
	FetchTimeout    string `json:"fetch_timeout,omitempty"`
	MaxContentSize  int    `json:"max_content_size,omitempty"`
	UserAgent       string `json:"user_agent,omitempty"`

	// TrackChanges keeps the previous body (bounded by
	// track_changes_max_size) so change notifications can carry a
	// +N/-M line summary. Change detection itself never depends on it.
	TrackChanges        bool `json:"track_changes,omitempty"`
	TrackChangesMaxSize int  `json:"track_changes_max_size,omitempty"`
}

// NotifierConfig controls the async notification pipeline.
type NotifierConfig struct {
	Workers         int    `json:"workers,omitempty"`
	QueueSize       int    `json:"queue_size,omitempty"`
	RatePerSec      int    `json:"rate_per_sec,omitempty"`
	RetryMax        int    `json:"retry_max,omitempty"`
	RetryBase       string `json:"retry_base,omitempty"`
	RetryMaxDelay   string `json:"retry_max_delay,omitempty"`
	DedupWindow     string `json:"dedup_window,omitempty"`
	DedupMaxEntries int    `json:"dedup_max_entries,omitempty"`
}
