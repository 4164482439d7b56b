package app

import (
	"slices"
	"time"

	"cryptopulse/internal/config"
	"cryptopulse/internal/engine"
	"cryptopulse/internal/scheduler"
	"cryptopulse/internal/storage"
	logx "cryptopulse/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapStorageConfig(cfg *config.Config) storage.Config {
	s := cfg.Storage
	if s == nil {
		return storage.Config{}
	}
	// Validate() already vetted the duration string.
	busy, _ := config.ParseDurationField("storage.busy_timeout", s.BusyTimeout)
	return storage.Config{
		Driver:      s.Driver,
		Path:        s.Path,
		BusyTimeout: busy,
		KeepCycles:  s.KeepCycles,
	}
}

func mapEngineConfig(cfg *config.Config) (engine.Config, error) {
	fetchTimeout, err := config.ParseDurationField("feed.timeout", cfg.Feed.Timeout)
	if err != nil {
		return engine.Config{}, err
	}
	narrTimeout, err := config.ParseDurationField("ai.timeout", cfg.AI.Timeout)
	if err != nil {
		return engine.Config{}, err
	}
	deliverTimeout, err := config.ParseDurationField("updates.deliver_timeout", cfg.Updates.DeliverTimeout)
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		Threshold:        cfg.Updates.Threshold,
		FetchTimeout:     fetchTimeout,
		NarrativeTimeout: narrTimeout,
		DeliverTimeout:   deliverTimeout,
	}, nil
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	interval, err := config.ParseDurationOrDefault("updates.interval", cfg.Updates.Interval, 12*time.Hour)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Interval: interval,
		Timezone: cfg.Updates.Timezone,
	}, nil
}

// feedEqual ignores Timeout: that one applies live through the engine
// config, the rest is baked into the client at startup.
func feedEqual(a, b config.Feed) bool {
	return a.APIKey == b.APIKey && slices.Equal(a.Currencies, b.Currencies)
}

// aiEqual likewise ignores Timeout.
func aiEqual(a, b config.AI) bool {
	return a.APIKey == b.APIKey && a.Model == b.Model && a.Temperature == b.Temperature
}

func storageEqual(a, b *config.Storage) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
