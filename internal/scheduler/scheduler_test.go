package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	logx "cryptopulse/pkg/logx"
)

func TestConfigIntervalDefault(t *testing.T) {
	t.Parallel()

	if got := (Config{}).interval(); got != DefaultInterval {
		t.Errorf("zero interval = %v, want %v", got, DefaultInterval)
	}
	if got := (Config{Interval: time.Minute}).interval(); got != time.Minute {
		t.Errorf("interval = %v, want 1m", got)
	}
}

func TestServiceFires(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	s := New(Config{Interval: 20 * time.Millisecond}, func(ctx context.Context) {
		runs.Add(1)
	}, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	deadline := time.After(2 * time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("scheduler never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestServiceSkipsOverlappingRuns(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	var started atomic.Int32
	s := New(Config{Interval: 10 * time.Millisecond}, func(ctx context.Context) {
		started.Add(1)
		<-block
	}, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	deadline := time.After(2 * time.Second)
	for started.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("scheduler never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// Let several triggers elapse while the first run is blocked.
	time.Sleep(100 * time.Millisecond)
	if got := started.Load(); got != 1 {
		t.Errorf("started %d runs concurrently, want 1", got)
	}
	close(block)
}

func TestStopCancelsRunContext(t *testing.T) {
	t.Parallel()

	gotCtx := make(chan context.Context, 1)
	s := New(Config{Interval: 10 * time.Millisecond}, func(ctx context.Context) {
		select {
		case gotCtx <- ctx:
		default:
		}
		<-ctx.Done()
	}, logx.Nop())

	s.Start(context.Background())

	var ctx context.Context
	select {
	case ctx = <-gotCtx:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never fired")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(stopCtx)

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("run context not cancelled on Stop")
	}
}
