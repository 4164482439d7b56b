package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"cryptopulse/internal/news"
	logx "cryptopulse/pkg/logx"
)

type fakeFeed struct {
	snaps []news.Snapshot
	errs  []error
	calls int
}

func (f *fakeFeed) Fetch(ctx context.Context) (news.Snapshot, error) {
	i := f.calls
	f.calls++
	if i >= len(f.snaps) {
		i = len(f.snaps) - 1
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return f.snaps[i], err
}

type fakeGen struct {
	text string
	err  error
}

func (g *fakeGen) Summarize(ctx context.Context, s news.Snapshot) (string, error) {
	return g.text, g.err
}

type fakeDelivery struct {
	errs  []error
	calls int
	sent  []string
}

func (d *fakeDelivery) Deliver(ctx context.Context, text string) error {
	i := d.calls
	d.calls++
	var err error
	if i < len(d.errs) {
		err = d.errs[i]
	}
	if err == nil {
		d.sent = append(d.sent, text)
	}
	return err
}

// captureComposer renders a deterministic digest so tests can assert on
// the payload handed to delivery.
type captureComposer struct {
	narratives []string
}

func (c *captureComposer) Compose(s news.Snapshot, narrative string) string {
	c.narratives = append(c.narratives, narrative)
	var b strings.Builder
	fmt.Fprintf(&b, "narrative=%q", narrative)
	for _, cat := range news.Categories {
		fmt.Fprintf(&b, " %s=%d", cat, len(s.Items(cat)))
	}
	return b.String()
}

func newTestController(feed *fakeFeed, gen NarrativeGenerator, del *fakeDelivery) (*Controller, *captureComposer) {
	comp := &captureComposer{}
	c := New(Config{}, feed, gen, del, comp, nil, logx.Nop())
	return c, comp
}

func TestRunCycleIdempotence(t *testing.T) {
	t.Parallel()

	s := snap([]string{"a", "b", "c", "d"}, nil, nil)
	feed := &fakeFeed{snaps: []news.Snapshot{s, s}}
	del := &fakeDelivery{}
	c, _ := newTestController(feed, nil, del)

	first := c.RunCycle(context.Background())
	if first.Status != StatusSent {
		t.Fatalf("first cycle = %+v, want sent", first)
	}
	second := c.RunCycle(context.Background())
	if second.Status != StatusSkipped || second.Reason != SkipNotSignificant {
		t.Fatalf("second cycle = %+v, want skipped(not-significant)", second)
	}
	if del.calls != 1 {
		t.Fatalf("delivery calls = %d, want 1", del.calls)
	}
}

func TestRunCycleDeliveryFailureKeepsState(t *testing.T) {
	t.Parallel()

	s := snap([]string{"a", "b", "c", "d"}, nil, nil)
	feed := &fakeFeed{snaps: []news.Snapshot{s, s}}
	del := &fakeDelivery{errs: []error{errors.New("telegram down")}}
	c, _ := newTestController(feed, nil, del)

	first := c.RunCycle(context.Background())
	if first.Status != StatusDeliveryFailed {
		t.Fatalf("first cycle = %+v, want delivery_failed", first)
	}
	if c.Status().HasState {
		t.Fatal("state must not be committed after a delivery failure")
	}

	// Same snapshot again: everything must still count as new.
	second := c.RunCycle(context.Background())
	if second.Status != StatusSent {
		t.Fatalf("second cycle = %+v, want sent", second)
	}
	if second.NewItems != 4 {
		t.Fatalf("NewItems = %d, want 4 (pre-failure state must be retained)", second.NewItems)
	}
	if !c.Status().HasState {
		t.Fatal("state must be committed after the successful retry")
	}
}

func TestRunCycleEmptySnapshot(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{snaps: []news.Snapshot{{}}}
	del := &fakeDelivery{}
	c, _ := newTestController(feed, nil, del)

	out := c.RunCycle(context.Background())
	if out.Status != StatusSkipped || out.Reason != SkipNoContent {
		t.Fatalf("outcome = %+v, want skipped(no-content)", out)
	}
	if del.calls != 0 {
		t.Fatal("no delivery attempt expected for an empty snapshot")
	}
	if c.Status().HasState {
		t.Fatal("state must stay unset")
	}
}

func TestRunCycleFetchError(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{snaps: []news.Snapshot{{}}, errs: []error{errors.New("timeout")}}
	del := &fakeDelivery{}
	c, _ := newTestController(feed, nil, del)

	out := c.RunCycle(context.Background())
	if out.Status != StatusSkipped || out.Reason != SkipFetchError || out.Err == nil {
		t.Fatalf("outcome = %+v, want skipped(fetch-error)", out)
	}
	if del.calls != 0 {
		t.Fatal("no delivery attempt expected after a fetch error")
	}
}

func TestRunCycleNarrativeDegradesGracefully(t *testing.T) {
	t.Parallel()

	s := snap([]string{"a", "b", "c"}, nil, nil)
	feed := &fakeFeed{snaps: []news.Snapshot{s}}
	del := &fakeDelivery{}
	gen := &fakeGen{err: errors.New("llm unavailable")}
	c, comp := newTestController(feed, gen, del)

	out := c.RunCycle(context.Background())
	if out.Status != StatusSent {
		t.Fatalf("outcome = %+v, want sent despite narrative failure", out)
	}
	if len(comp.narratives) != 1 || comp.narratives[0] != "" {
		t.Fatalf("composer narratives = %q, want one empty narrative", comp.narratives)
	}
}

func TestRunCycleNarrativeIncluded(t *testing.T) {
	t.Parallel()

	s := snap([]string{"a", "b", "c"}, nil, nil)
	feed := &fakeFeed{snaps: []news.Snapshot{s}}
	del := &fakeDelivery{}
	gen := &fakeGen{text: "markets are jittery"}
	c, _ := newTestController(feed, gen, del)

	out := c.RunCycle(context.Background())
	if out.Status != StatusSent {
		t.Fatalf("outcome = %+v, want sent", out)
	}
	if len(del.sent) != 1 || !strings.Contains(del.sent[0], `narrative="markets are jittery"`) {
		t.Fatalf("delivered payload = %q, want narrative included", del.sent)
	}
}

func TestRunCycleEndToEndBullishOnly(t *testing.T) {
	t.Parallel()

	s := snap([]string{"A", "B", "C", "D"}, nil, nil)
	feed := &fakeFeed{snaps: []news.Snapshot{s}}
	del := &fakeDelivery{}
	c, _ := newTestController(feed, nil, del)

	out := c.RunCycle(context.Background())
	if out.Status != StatusSent {
		t.Fatalf("outcome = %+v, want sent", out)
	}
	if len(del.sent) != 1 || !strings.Contains(del.sent[0], "bullish=4") {
		t.Fatalf("delivered payload = %q, want 4 bullish entries", del.sent)
	}
	if !strings.Contains(del.sent[0], "bearish=0") || !strings.Contains(del.sent[0], "neutral=0") {
		t.Fatalf("delivered payload = %q, want empty bearish/neutral", del.sent)
	}
}

func TestStatusCounters(t *testing.T) {
	t.Parallel()

	s := snap([]string{"a", "b", "c"}, nil, nil)
	feed := &fakeFeed{snaps: []news.Snapshot{s, s}}
	del := &fakeDelivery{}
	c, _ := newTestController(feed, nil, del)

	st := c.Status()
	if st.HasState || st.Cycles != 0 || st.Sent != 0 {
		t.Fatalf("initial status = %+v", st)
	}

	c.RunCycle(context.Background())
	c.RunCycle(context.Background())

	st = c.Status()
	if !st.HasState || st.Cycles != 2 || st.Sent != 1 || st.StateItems != 3 {
		t.Fatalf("status = %+v, want state with 3 items, 2 cycles, 1 sent", st)
	}
	if st.LastSentAt.IsZero() {
		t.Fatal("LastSentAt should be set after a sent cycle")
	}
}
