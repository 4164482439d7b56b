package engine

import (
	"fmt"
	"testing"

	"cryptopulse/internal/news"
)

func snap(bullish, bearish, neutral []string) news.Snapshot {
	var s news.Snapshot
	for _, t := range bullish {
		s.Append(news.Item{Title: t, Sentiment: news.Bullish})
	}
	for _, t := range bearish {
		s.Append(news.Item{Title: t, Sentiment: news.Bearish})
	}
	for _, t := range neutral {
		s.Append(news.Item{Title: t, Sentiment: news.Neutral})
	}
	return s
}

func TestShouldNotifyFirstCycle(t *testing.T) {
	t.Parallel()

	d := NewDetector(0)
	for _, s := range []news.Snapshot{
		{},
		snap([]string{"a"}, nil, nil),
		snap([]string{"a"}, []string{"b"}, []string{"c", "d"}),
	} {
		if !d.ShouldNotify(nil, s) {
			t.Fatalf("nil previous must always notify (snapshot %+v)", s)
		}
	}
}

func TestShouldNotifyRemovalsOnly(t *testing.T) {
	t.Parallel()

	d := NewDetector(3)
	prev := snap([]string{"a", "b", "c"}, []string{"d", "e"}, []string{"f"})
	cur := snap([]string{"a"}, nil, []string{"f"})

	if d.ShouldNotify(&prev, cur) {
		t.Fatal("removed items must not trigger a notification")
	}
	if n := d.NewItemCount(&prev, cur); n != 0 {
		t.Fatalf("NewItemCount = %d, want 0", n)
	}
}

func TestShouldNotifyThreshold(t *testing.T) {
	t.Parallel()

	d := NewDetector(3)
	prev := snap([]string{"a"}, []string{"b"}, []string{"c"})

	tests := []struct {
		cur  news.Snapshot
		k    int
		want bool
	}{
		{snap([]string{"a"}, []string{"b"}, []string{"c"}), 0, false},
		{snap([]string{"a", "n1"}, []string{"b"}, []string{"c"}), 1, false},
		{snap([]string{"a", "n1"}, []string{"b", "n2"}, []string{"c"}), 2, false},
		{snap([]string{"a", "n1"}, []string{"b", "n2"}, []string{"c", "n3"}), 3, true},
		{snap([]string{"n1", "n2", "n3", "n4"}, nil, nil), 4, true},
	}
	for i, tt := range tests {
		i, tt := i, tt
		t.Run(fmt.Sprintf("k=%d", tt.k), func(t *testing.T) {
			t.Parallel()
			if n := d.NewItemCount(&prev, tt.cur); n != tt.k {
				t.Fatalf("case %d: NewItemCount = %d, want %d", i, n, tt.k)
			}
			if got := d.ShouldNotify(&prev, tt.cur); got != tt.want {
				t.Fatalf("case %d: ShouldNotify = %v, want %v", i, got, tt.want)
			}
		})
	}
}

func TestNewItemCountDistinctTitles(t *testing.T) {
	t.Parallel()

	d := NewDetector(3)
	prev := snap(nil, nil, nil)
	// Same fresh title repeated within a category counts once.
	cur := snap([]string{"dup", "dup", "dup"}, nil, nil)
	if n := d.NewItemCount(&prev, cur); n != 1 {
		t.Fatalf("NewItemCount = %d, want 1", n)
	}
}

func TestNewItemCountPerCategoryIdentity(t *testing.T) {
	t.Parallel()

	d := NewDetector(3)
	// A title known in bullish is still new when it shows up in bearish:
	// categories are compared independently.
	prev := snap([]string{"headline"}, nil, nil)
	cur := snap([]string{"headline"}, []string{"headline"}, nil)
	if n := d.NewItemCount(&prev, cur); n != 1 {
		t.Fatalf("NewItemCount = %d, want 1", n)
	}
}
