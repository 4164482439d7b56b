package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate checks the parts of the config that would otherwise fail at
// an awkward moment deep inside a cycle. It does not reach the network.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error

	if strings.TrimSpace(c.Telegram.Token) == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	if c.Telegram.ChannelID == 0 {
		errs = append(errs, errors.New("telegram.channel_id is required"))
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		errs = append(errs, err)
	}

	if _, err := ParseDurationField("feed.timeout", c.Feed.Timeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("ai.timeout", c.AI.Timeout); err != nil {
		errs = append(errs, err)
	}

	if _, err := ParseDurationField("updates.interval", c.Updates.Interval); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("updates.deliver_timeout", c.Updates.DeliverTimeout); err != nil {
		errs = append(errs, err)
	}
	if c.Updates.Threshold < 0 {
		errs = append(errs, errors.New("updates.threshold must be >= 0"))
	}
	if tz := strings.TrimSpace(c.Updates.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("updates.timezone: %w", err))
		}
	}

	if c.Logging.File.Enabled && strings.TrimSpace(c.Logging.File.Path) == "" {
		errs = append(errs, errors.New("logging.file.path is required when file logging is enabled"))
	}

	if s := c.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none":
		case "sqlite", "sqlite3":
			if strings.TrimSpace(s.Path) == "" {
				errs = append(errs, errors.New("storage.path is required for sqlite"))
			}
		default:
			errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", s.Driver))
		}
		if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
		if s.KeepCycles < 0 {
			errs = append(errs, errors.New("storage.keep_cycles must be >= 0"))
		}
	}

	return errors.Join(errs...)
}
