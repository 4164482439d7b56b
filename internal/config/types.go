package config

// Config is the full bot configuration. YAML and JSON are both
// accepted; unknown keys are rejected so typos surface early.
type Config struct {
	Telegram Telegram `json:"telegram"`
	Feed     Feed     `json:"feed"`
	AI       AI       `json:"ai"`
	Updates  Updates  `json:"updates"`
	Logging  Logging  `json:"logging"`
	Storage  *Storage `json:"storage,omitempty"`
}

type Telegram struct {
	Token string `json:"token"`
	// ChannelID is the chat the news notifications are published to.
	ChannelID int64 `json:"channel_id"`
	// OwnerUserIDs restricts /news to listed users when non-empty.
	OwnerUserIDs []int64 `json:"owner_user_ids,omitempty"`
	// GroupLog optionally receives forwarded warning/error log lines.
	GroupLog int64 `json:"group_log,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type Feed struct {
	APIKey     string   `json:"api_key"`
	Currencies []string `json:"currencies,omitempty"`
	// Timeout bounds one snapshot fetch. Go duration string.
	Timeout string `json:"timeout,omitempty"`
}

// AI configures the optional narrative generator. An empty api_key
// disables it; the bot runs fine without.
type AI struct {
	APIKey      string  `json:"api_key,omitempty"`
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	// Timeout bounds one summary request. Go duration string.
	Timeout string `json:"timeout,omitempty"`
}

// Updates controls the cycle cadence and the significance policy.
//
// Defaults (when fields are omitted/zero):
//   - interval: "12h"
//   - threshold: 3 net-new items
//   - deliver_timeout: "30s"
type Updates struct {
	// Interval between scheduled cycles. Go duration string.
	Interval string `json:"interval,omitempty"`
	// Threshold is the minimum count of net-new items worth publishing.
	Threshold int `json:"threshold,omitempty"`
	// Timezone for the scheduler (IANA name). Empty means local time.
	Timezone string `json:"timezone,omitempty"`
	// DeliverTimeout bounds one notification send. Go duration string.
	DeliverTimeout string `json:"deliver_timeout,omitempty"`
}

type Logging struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// Storage controls the optional cycle-history database.
//
// Example:
//
//	storage: { driver: sqlite, path: ./cryptopulse.db }
type Storage struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
	KeepCycles  int    `json:"keep_cycles,omitempty"`
}
