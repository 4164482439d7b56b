package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cryptopulse/internal/engine"
	logx "cryptopulse/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "pulse.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()

	st, err := Open(Config{}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("Open disabled = (%v, %v), want (nil, nil)", st, err)
	}

	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestRecordAndReadBack(t *testing.T) {
	t.Parallel()

	st := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	outcomes := []engine.Outcome{
		{CycleID: "c1", Status: engine.StatusSkipped, Reason: engine.SkipFetchError, Err: errors.New("boom"), At: base},
		{CycleID: "c2", Status: engine.StatusSent, NewItems: 4, TotalItems: 6, At: base.Add(time.Minute), Took: 1200 * time.Millisecond},
	}
	for _, o := range outcomes {
		if err := st.RecordCycle(ctx, o); err != nil {
			t.Fatalf("RecordCycle(%s): %v", o.CycleID, err)
		}
	}

	recs, err := st.RecentCycles(ctx, 10)
	if err != nil {
		t.Fatalf("RecentCycles: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	// Newest first.
	if recs[0].ID != "c2" || recs[1].ID != "c1" {
		t.Fatalf("order = %s,%s", recs[0].ID, recs[1].ID)
	}
	if recs[0].Status != string(engine.StatusSent) || recs[0].NewItems != 4 || recs[0].TookMS != 1200 {
		t.Fatalf("sent record = %+v", recs[0])
	}
	if recs[1].Reason != string(engine.SkipFetchError) || recs[1].Error != "boom" {
		t.Fatalf("skipped record = %+v", recs[1])
	}
	if !recs[1].At.Equal(base) {
		t.Fatalf("At = %v, want %v", recs[1].At, base)
	}
}

func TestRecentCyclesLimit(t *testing.T) {
	t.Parallel()

	st := openTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()
	for i := 0; i < 7; i++ {
		o := engine.Outcome{
			CycleID: string(rune('a' + i)),
			Status:  engine.StatusSkipped,
			Reason:  engine.SkipNotSignificant,
			At:      base.Add(time.Duration(i) * time.Second),
		}
		if err := st.RecordCycle(ctx, o); err != nil {
			t.Fatalf("RecordCycle: %v", err)
		}
	}

	recs, err := st.RecentCycles(ctx, 3)
	if err != nil {
		t.Fatalf("RecentCycles: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("records = %d, want 3", len(recs))
	}
}
