// Package app wires the bot together: config, logging, the Telegram
// adapter, the cycle engine, and the scheduler.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cryptopulse/internal/compose"
	"cryptopulse/internal/config"
	"cryptopulse/internal/engine"
	"cryptopulse/internal/feed"
	"cryptopulse/internal/narrative"
	"cryptopulse/internal/scheduler"
	"cryptopulse/internal/storage"
	kit "cryptopulse/internal/transport"
	telegram "cryptopulse/internal/transport/telegram"
	logx "cryptopulse/pkg/logx"
)

type StopReason string

const (
	StopSIGINT     StopReason = "sigint"
	StopSIGTERM    StopReason = "sigterm"
	StopFatalError StopReason = "fatal_error"
	StopAppStop    StopReason = "app_stop"
)

type App struct {
	cfgPath string
	cfgm    *config.Manager

	log  logx.Logger
	logs *logx.Service

	adapter kit.Adapter
	store   storage.Store

	ctrl  *engine.Controller
	sched *scheduler.Service
	cmds  *Commands

	updates chan kit.Message

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	errMu    sync.Mutex
	firstErr error
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	// Bootstrap with Telegram log forwarding off, set the target, then
	// Apply() the final config so the first Apply can't warn about a
	// missing target.
	baseLogCfg := mapLogConfig(cfg)
	baseLogCfg.Telegram.Enabled = false
	logSvc, log := logx.New(baseLogCfg, ad)
	log = log.With(logx.String("comp", "app"))

	if cfg.Telegram.GroupLog != 0 {
		logSvc.SetTelegramTarget(cfg.Telegram.GroupLog, cfg.Logging.Telegram.ThreadID)
	}
	logSvc.Apply(mapLogConfig(cfg))

	// Storage (optional cycle history)
	store, err := storage.Open(mapStorageConfig(cfg), log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	if store != nil {
		log.Info("cycle history enabled", logx.String("driver", cfg.Storage.Driver))
	}

	feedClient := feed.New(feed.Config{
		APIKey:     cfg.Feed.APIKey,
		Currencies: cfg.Feed.Currencies,
	}, log.With(logx.String("comp", "feed")))

	gen := narrative.FromConfig(narrative.Config{
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
	}, log.With(logx.String("comp", "narrative")))

	channel := kit.NewChannel(ad,
		kit.ChatTarget{ChatID: cfg.Telegram.ChannelID},
		kit.SendOptions{ParseMode: "Markdown", DisablePreview: true})

	engCfg, err := mapEngineConfig(cfg)
	if err != nil {
		return nil, err
	}
	var rec engine.Recorder
	if store != nil {
		rec = store
	}
	ctrl := engine.New(engCfg, feedClient, gen, channel, compose.New(), rec,
		log.With(logx.String("comp", "engine")))

	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		return nil, err
	}
	sched := scheduler.New(schedCfg, func(ctx context.Context) {
		ctrl.RunCycle(ctx)
	}, log.With(logx.String("comp", "scheduler")))

	cmds := NewCommands(log.With(logx.String("comp", "commands")),
		ad, ctrl, store, cfg.Telegram.OwnerUserIDs)

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		adapter: ad,
		store:   store,
		ctrl:    ctrl,
		sched:   sched,
		cmds:    cmds,
		updates: make(chan kit.Message, 256),
	}, nil
}

// Done is closed when the app run context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.runCtx == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.runCtx.Done()
}

// Err returns the first fatal error observed by a background loop.
func (a *App) Err() error {
	a.errMu.Lock()
	defer a.errMu.Unlock()
	return a.firstErr
}

func (a *App) fatal(err error) {
	if err == nil {
		return
	}
	a.errMu.Lock()
	if a.firstErr == nil {
		a.firstErr = err
	}
	a.errMu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
}

func (a *App) Start(ctx context.Context) error {
	a.runCtx, a.cancel = context.WithCancel(ctx)

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return cfg.Validate()
	})

	if err := a.adapter.Start(a.runCtx, a.updates); err != nil {
		return err
	}

	a.sched.Start(a.runCtx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.cmds.DispatchLoop(a.runCtx, a.updates)
	}()

	sub := a.cfgm.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(a.runCtx, sub)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(a.runCtx); err != nil {
			a.fatal(fmt.Errorf("config watch: %w", err))
		}
	}()

	a.log.Info("app started")
	return nil
}

// reloadLoop applies hot-reloadable config changes. Threshold, timeouts,
// interval, logging, and the owner list apply live; token, channel,
// feed, AI, and storage changes need a restart and are only warned
// about.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: apply only the newest config.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			a.applyConfig(last, cfg)
			last = cfg
		}
	}
}

func (a *App) applyConfig(old, cfg *config.Config) {
	if old != nil {
		if old.Telegram.Token != cfg.Telegram.Token {
			a.log.Warn("telegram.token changed; restart required")
		}
		if old.Telegram.ChannelID != cfg.Telegram.ChannelID {
			a.log.Warn("telegram.channel_id changed; restart required")
		}
		if !feedEqual(old.Feed, cfg.Feed) {
			a.log.Warn("feed config changed; restart required")
		}
		if !aiEqual(old.AI, cfg.AI) {
			a.log.Warn("ai config changed; restart required")
		}
		if !storageEqual(old.Storage, cfg.Storage) {
			a.log.Warn("storage config changed; restart required")
		}
	}

	// log target first so Apply() doesn't warn when forwarding is enabled
	if cfg.Telegram.GroupLog != 0 {
		a.logs.SetTelegramTarget(cfg.Telegram.GroupLog, cfg.Logging.Telegram.ThreadID)
	} else {
		a.logs.SetTelegramTarget(0, 0)
	}
	a.logs.Apply(mapLogConfig(cfg))

	a.cmds.SetOwners(cfg.Telegram.OwnerUserIDs)

	if engCfg, err := mapEngineConfig(cfg); err != nil {
		a.log.Warn("invalid engine config; keeping previous", logx.Err(err))
	} else {
		a.ctrl.Apply(engCfg)
	}
	if schedCfg, err := mapSchedulerConfig(cfg); err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
	} else {
		a.sched.Apply(schedCfg)
	}

	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.cancel == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("storage", 1*time.Second, func(_ context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	step("goroutines", 2*time.Second, func(c context.Context) error {
		done := make(chan struct{})
		go func() { a.wg.Wait(); close(done) }()
		select {
		case <-done:
			return nil
		case <-c.Done():
			return c.Err()
		}
	})

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}
