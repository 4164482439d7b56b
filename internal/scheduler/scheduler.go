// Package scheduler fires the news cycle on a fixed interval. It is
// trigger-only; the cycle itself runs in engine.Controller.
package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "cryptopulse/pkg/logx"
)

const DefaultInterval = 12 * time.Hour

type Config struct {
	// Interval between cycles. Zero means DefaultInterval.
	Interval time.Duration
	// Timezone is an IANA zone name for cron bookkeeping. Empty means
	// local time.
	Timezone string
}

func (c Config) interval() time.Duration {
	if c.Interval <= 0 {
		return DefaultInterval
	}
	return c.Interval
}

// Service triggers run() every interval. A fire that arrives while the
// previous run is still in flight is skipped, not queued.
type Service struct {
	mu  sync.Mutex
	cfg Config
	c   *cron.Cron
	loc *time.Location

	run func(ctx context.Context)
	log logx.Logger

	runMu sync.Mutex // held for the duration of one run

	baseCtx context.Context
	cancel  context.CancelFunc
}

func New(cfg Config, run func(ctx context.Context), log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, run: run, log: log}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.baseCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.startLocked()
}

func (s *Service) startLocked() {
	loc := s.loadLocationLocked()
	s.loc = loc
	s.c = cron.New(cron.WithLocation(loc))
	interval := s.cfg.interval()
	s.c.Schedule(cron.Every(interval), cron.FuncJob(s.fire))
	s.c.Start()
	s.log.Info("scheduler started",
		logx.Duration("interval", interval),
		logx.String("tz", loc.String()))
}

func (s *Service) fire() {
	if !s.runMu.TryLock() {
		s.log.Warn("cycle still running, skipping this trigger")
		return
	}
	defer s.runMu.Unlock()

	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	s.run(ctx)
}

// Apply updates interval/timezone; a change restarts the cron loop so
// the next fire uses the new cadence.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := cfg.interval() != s.cfg.interval() ||
		strings.TrimSpace(cfg.Timezone) != strings.TrimSpace(s.cfg.Timezone)
	s.cfg = cfg

	if s.c == nil || !changed {
		return
	}
	old := s.c
	s.c = nil
	go func() { <-old.Stop().Done() }()
	s.startLocked()
}

func (s *Service) Stop(ctx context.Context) {
	start := time.Now()

	s.mu.Lock()
	c := s.c
	s.c = nil
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			// best-effort
		}
	}
	s.log.Info("scheduler stopped", logx.Duration("took", time.Since(start)))
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone, using local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}
