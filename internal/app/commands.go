package app

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"cryptopulse/internal/engine"
	"cryptopulse/internal/storage"
	kit "cryptopulse/internal/transport"
	logx "cryptopulse/pkg/logx"
)

const helpText = `Available commands:
/news - fetch the feed now and post an update if it is significant
/status - engine state and counters
/history [n] - recent cycle outcomes (needs storage)
/help - this message`

// Commands dispatches incoming chat commands. /news and /history are
// restricted to the owner list when one is configured; /status and
// /help answer anyone.
type Commands struct {
	log     logx.Logger
	adapter kit.Adapter
	ctrl    *engine.Controller
	store   storage.Store

	mu     sync.RWMutex
	owners []int64

	newsMu sync.Mutex // one on-demand cycle at a time
}

func NewCommands(log logx.Logger, adapter kit.Adapter, ctrl *engine.Controller, store storage.Store, owners []int64) *Commands {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Commands{
		log:     log,
		adapter: adapter,
		ctrl:    ctrl,
		store:   store,
		owners:  slices.Clone(owners),
	}
}

func (c *Commands) SetOwners(owners []int64) {
	c.mu.Lock()
	c.owners = slices.Clone(owners)
	c.mu.Unlock()
}

func (c *Commands) isOwner(userID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	// An empty list means no restriction.
	return len(c.owners) == 0 || slices.Contains(c.owners, userID)
}

func (c *Commands) DispatchLoop(ctx context.Context, updates <-chan kit.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-updates:
			if !ok {
				return
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *Commands) handle(ctx context.Context, msg kit.Message) {
	cmd, arg := parseCommand(msg.Text)
	if cmd == "" {
		return
	}
	c.log.Debug("command received",
		logx.String("cmd", cmd),
		logx.Int64("from", msg.FromID),
		logx.Int64("chat", msg.ChatID))

	switch cmd {
	case "/start":
		c.reply(ctx, msg, "👋 Crypto news watcher is running. Use /help for commands.")
	case "/help":
		c.reply(ctx, msg, helpText)
	case "/news":
		if !c.isOwner(msg.FromID) {
			c.reply(ctx, msg, "⛔ This command is restricted.")
			return
		}
		c.runNews(ctx, msg)
	case "/status":
		c.reply(ctx, msg, c.statusText())
	case "/history":
		if !c.isOwner(msg.FromID) {
			c.reply(ctx, msg, "⛔ This command is restricted.")
			return
		}
		c.reply(ctx, msg, c.historyText(ctx, arg))
	}
}

// runNews runs the full cycle in the background so a slow feed doesn't
// stall the dispatch loop.
func (c *Commands) runNews(ctx context.Context, msg kit.Message) {
	if !c.newsMu.TryLock() {
		c.reply(ctx, msg, "⏳ A news cycle is already running.")
		return
	}
	c.reply(ctx, msg, "🔄 Checking the news feed...")
	go func() {
		defer c.newsMu.Unlock()
		outcome := c.ctrl.RunCycle(ctx)
		c.reply(ctx, msg, outcome.Describe())
	}()
}

func (c *Commands) statusText() string {
	st := c.ctrl.Status()
	var b strings.Builder
	b.WriteString("📊 Engine status\n")
	fmt.Fprintf(&b, "Cycles run: %d (sent: %d)\n", st.Cycles, st.Sent)
	fmt.Fprintf(&b, "Significance threshold: %d new items\n", st.Threshold)
	if st.HasState {
		fmt.Fprintf(&b, "Tracked items: %d\n", st.StateItems)
	} else {
		b.WriteString("Tracked items: none (next update sends unconditionally)\n")
	}
	if !st.LastSentAt.IsZero() {
		fmt.Fprintf(&b, "Last update sent: %s", st.LastSentAt.UTC().Format("2006-01-02 15:04 MST"))
	} else {
		b.WriteString("Last update sent: never")
	}
	return b.String()
}

const (
	historyDefault = 10
	historyMax     = 50
)

func (c *Commands) historyText(ctx context.Context, arg string) string {
	if c.store == nil {
		return "ℹ️ Cycle history is disabled (no storage configured)."
	}
	limit := historyDefault
	if arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			return "Usage: /history [n]"
		}
		limit = min(n, historyMax)
	}

	recs, err := c.store.RecentCycles(ctx, limit)
	if err != nil {
		c.log.Warn("history query failed", logx.Err(err))
		return "⚠️ Could not read cycle history."
	}
	if len(recs) == 0 {
		return "ℹ️ No cycles recorded yet."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🗂 Last %d cycles:\n", len(recs))
	for _, r := range recs {
		fmt.Fprintf(&b, "%s  %s", r.At.UTC().Format("01-02 15:04"), r.Status)
		if r.Reason != "" {
			fmt.Fprintf(&b, " (%s)", r.Reason)
		}
		fmt.Fprintf(&b, "  new=%d total=%d\n", r.NewItems, r.TotalItems)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Commands) reply(ctx context.Context, msg kit.Message, text string) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	to := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	if _, err := c.adapter.SendText(sctx, to, text, nil); err != nil {
		c.log.Warn("reply failed", logx.Err(err), logx.Int64("chat", msg.ChatID))
	}
}

// parseCommand extracts "/cmd" and the first argument from a message.
// The bot-mention suffix ("/news@mybot") is stripped.
func parseCommand(text string) (cmd, arg string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	fields := strings.Fields(text)
	cmd = fields[0]
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	if len(fields) > 1 {
		arg = fields[1]
	}
	return strings.ToLower(cmd), arg
}
