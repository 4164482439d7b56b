// Package engine holds the change-detection and update-decision core:
// the detector that compares snapshots against the last published state
// and the controller that runs one fetch-decide-compose-deliver-commit
// cycle at a time.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"cryptopulse/internal/news"
	logx "cryptopulse/pkg/logx"
)

// FeedClient returns the current categorized snapshot. Any failure is
// "no data this cycle", never fatal.
type FeedClient interface {
	Fetch(ctx context.Context) (news.Snapshot, error)
}

// NarrativeGenerator produces a short natural-language summary of a
// snapshot. Implementations may be permanently unconfigured; any error
// degrades to "no narrative".
type NarrativeGenerator interface {
	Summarize(ctx context.Context, s news.Snapshot) (string, error)
}

// DeliveryChannel sends a rendered notification. The error result is
// what decides whether state is committed.
type DeliveryChannel interface {
	Deliver(ctx context.Context, text string) error
}

// Composer renders a snapshot plus optional narrative into the outgoing
// message. Must not fail and must not mutate its inputs.
type Composer interface {
	Compose(s news.Snapshot, narrative string) string
}

// Recorder receives a record of every completed cycle. Best-effort:
// record failures are logged and otherwise ignored.
type Recorder interface {
	RecordCycle(ctx context.Context, o Outcome) error
}

type Config struct {
	Threshold int

	FetchTimeout     time.Duration
	NarrativeTimeout time.Duration
	DeliverTimeout   time.Duration
}

func (c *Config) setDefaults() {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	if c.NarrativeTimeout <= 0 {
		c.NarrativeTimeout = 45 * time.Second
	}
	if c.DeliverTimeout <= 0 {
		c.DeliverTimeout = 30 * time.Second
	}
}

// Controller owns the last-accepted snapshot and serializes cycles.
// The state cell is replaced only as the final step of a cycle whose
// delivery succeeded; an abandoned or failed cycle leaves it untouched.
type Controller struct {
	feed     FeedClient
	gen      NarrativeGenerator
	delivery DeliveryChannel
	comp     Composer
	rec      Recorder
	log      logx.Logger

	// cycleMu is the single-flight lock: timer and on-demand triggers
	// both funnel through it.
	cycleMu sync.Mutex

	mu       sync.Mutex // guards everything below
	cfg      Config
	det      Detector
	state    *news.Snapshot
	lastSent time.Time
	cycles   uint64
	sent     uint64
}

func New(cfg Config, feed FeedClient, gen NarrativeGenerator, delivery DeliveryChannel, comp Composer, rec Recorder, log logx.Logger) *Controller {
	cfg.setDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Controller{
		feed:     feed,
		gen:      gen,
		delivery: delivery,
		comp:     comp,
		rec:      rec,
		log:      log,
		cfg:      cfg,
		det:      NewDetector(cfg.Threshold),
	}
}

// Apply updates tunables (threshold, timeouts). Safe during hot reload;
// the retained snapshot is unaffected.
func (c *Controller) Apply(cfg Config) {
	cfg.setDefaults()
	c.mu.Lock()
	c.cfg = cfg
	c.det = NewDetector(cfg.Threshold)
	c.mu.Unlock()
}

// EngineStatus is the read-only view exposed to the shell.
type EngineStatus struct {
	HasState   bool
	StateItems int
	LastSentAt time.Time
	Cycles     uint64
	Sent       uint64
	Threshold  int
}

func (c *Controller) Status() EngineStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := EngineStatus{
		HasState:   c.state != nil,
		LastSentAt: c.lastSent,
		Cycles:     c.cycles,
		Sent:       c.sent,
		Threshold:  c.det.Threshold(),
	}
	if c.state != nil {
		st.StateItems = c.state.Total()
	}
	return st
}

// RunCycle executes one full cycle. Concurrent callers are serialized;
// each caller still gets its own outcome.
func (c *Controller) RunCycle(ctx context.Context) Outcome {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	start := time.Now()
	o := Outcome{CycleID: uuid.NewString(), At: start}
	log := c.log.With(logx.String("cycle", o.CycleID))

	c.mu.Lock()
	cfg := c.cfg
	det := c.det
	prev := c.state
	c.cycles++
	c.mu.Unlock()

	defer func() {
		o.Took = time.Since(start)
		c.record(ctx, o, log)
	}()

	// 1. Fetch.
	fctx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
	cur, err := c.feed.Fetch(fctx)
	cancel()
	if err != nil {
		log.Warn("feed fetch failed", logx.Err(err))
		o.Status, o.Reason, o.Err = StatusSkipped, SkipFetchError, err
		return o
	}
	o.TotalItems = cur.Total()

	// 2. Nothing to show: the detector is not even consulted.
	if cur.Empty() {
		log.Info("feed returned no news")
		o.Status, o.Reason = StatusSkipped, SkipNoContent
		return o
	}

	// 3. Decide.
	o.NewItems = det.NewItemCount(prev, cur)
	if !det.ShouldNotify(prev, cur) {
		log.Info("no significant news updates",
			logx.Int("new_items", o.NewItems),
			logx.Int("threshold", det.Threshold()))
		o.Status, o.Reason = StatusSkipped, SkipNotSignificant
		return o
	}

	// 4. Narrative is optional; never blocks the cycle.
	narrative := ""
	if c.gen != nil {
		nctx, cancel := context.WithTimeout(ctx, cfg.NarrativeTimeout)
		text, err := c.gen.Summarize(nctx, cur)
		cancel()
		if err != nil {
			log.Debug("narrative unavailable", logx.Err(err))
		} else {
			narrative = text
		}
	}

	// 5. Compose.
	msg := c.comp.Compose(cur, narrative)

	// 6. Deliver.
	dctx, cancel := context.WithTimeout(ctx, cfg.DeliverTimeout)
	err = c.delivery.Deliver(dctx, msg)
	cancel()
	if err != nil {
		// State stays as-is so the same items still count as new on the
		// next cycle.
		log.Warn("delivery failed", logx.Err(err))
		o.Status, o.Err = StatusDeliveryFailed, err
		return o
	}

	// 7. Commit: the only place the state cell is written.
	c.mu.Lock()
	c.state = &cur
	c.lastSent = time.Now()
	c.sent++
	c.mu.Unlock()

	log.Info("news update sent",
		logx.Int("items", o.TotalItems),
		logx.Int("new_items", o.NewItems))
	o.Status = StatusSent
	return o
}

func (c *Controller) record(ctx context.Context, o Outcome, log logx.Logger) {
	if c.rec == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.rec.RecordCycle(rctx, o); err != nil {
		log.Debug("cycle record failed", logx.Err(err))
	}
}
