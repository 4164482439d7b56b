package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"cryptopulse/internal/engine"
	logx "cryptopulse/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const defaultKeepCycles = 1000

type sqliteStore struct {
	db   *sql.DB
	log  logx.Logger
	keep int

	opCount    atomic.Uint64
	pruneEvery uint64
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	keep := cfg.KeepCycles
	if keep <= 0 {
		keep = defaultKeepCycles
	}
	st := &sqliteStore{db: db, log: log, keep: keep, pruneEvery: 50}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) RecordCycle(ctx context.Context, o engine.Outcome) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	at := o.At
	if at.IsZero() {
		at = time.Now()
	}
	errText := ""
	if o.Err != nil {
		errText = o.Err.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cycles(id, at, status, reason, err, new_items, total_items, took_ms)
		 VALUES(?,?,?,?,?,?,?,?)`,
		o.CycleID, at.UTC().Format(time.RFC3339Nano), string(o.Status),
		nullStr(string(o.Reason)), nullStr(errText),
		o.NewItems, o.TotalItems, o.Took.Milliseconds(),
	)
	if err == nil && s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		if perr := s.prune(pctx); perr != nil {
			s.log.Debug("cycle prune failed", logx.Err(perr))
		}
		cancel()
	}
	return err
}

func (s *sqliteStore) prune(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM cycles WHERE id NOT IN (SELECT id FROM cycles ORDER BY at DESC LIMIT ?)`,
		s.keep,
	)
	return err
}

func (s *sqliteStore) RecentCycles(ctx context.Context, limit int) ([]CycleRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, at, status, reason, err, new_items, total_items, took_ms
		 FROM cycles ORDER BY at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CycleRecord
	for rows.Next() {
		var (
			r      CycleRecord
			at     string
			reason sql.NullString
			errTxt sql.NullString
		)
		if err := rows.Scan(&r.ID, &at, &r.Status, &reason, &errTxt, &r.NewItems, &r.TotalItems, &r.TookMS); err != nil {
			return nil, err
		}
		if ts, perr := time.Parse(time.RFC3339Nano, at); perr == nil {
			r.At = ts
		}
		r.Reason = reason.String
		r.Error = errTxt.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
