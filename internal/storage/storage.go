// Package storage keeps an append-only history of cycle outcomes for
// operator commands. The engine's retained snapshot is deliberately
// never persisted here; it resets with the process.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"cryptopulse/internal/engine"
	logx "cryptopulse/pkg/logx"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage. An empty or "none" driver disables it.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite busy handler; 0 means default
	KeepCycles  int           // rows retained before pruning; 0 means default
}

// CycleRecord is one completed cycle as read back from the store.
type CycleRecord struct {
	ID         string
	At         time.Time
	Status     string
	Reason     string
	Error      string
	NewItems   int
	TotalItems int
	TookMS     int64
}

// Store is the persistence API used by the app. It doubles as the
// engine's cycle recorder.
type Store interface {
	RecordCycle(ctx context.Context, o engine.Outcome) error
	RecentCycles(ctx context.Context, limit int) ([]CycleRecord, error)
	Close() error
}

// Open initializes the configured store. It returns (nil, nil) when
// storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
