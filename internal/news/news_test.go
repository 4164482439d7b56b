package news

import "testing"

func TestAppendRoutesBySentiment(t *testing.T) {
	t.Parallel()

	var s Snapshot
	s.Append(Item{Title: "a", Sentiment: Bullish})
	s.Append(Item{Title: "b", Sentiment: Bearish})
	s.Append(Item{Title: "c", Sentiment: Neutral})
	s.Append(Item{Title: "d", Sentiment: Sentiment("unknown")})

	if len(s.Bullish) != 1 || len(s.Bearish) != 1 || len(s.Neutral) != 1 {
		t.Fatalf("unexpected category sizes: %d/%d/%d", len(s.Bullish), len(s.Bearish), len(s.Neutral))
	}
	if s.Total() != 3 {
		t.Fatalf("Total = %d, want 3", s.Total())
	}
}

func TestItemsMatchesCategories(t *testing.T) {
	t.Parallel()

	s := Snapshot{
		Bullish: []Item{{Title: "up"}},
		Bearish: []Item{{Title: "down"}},
		Neutral: []Item{{Title: "flat"}},
	}

	want := map[Sentiment]string{Bullish: "up", Bearish: "down", Neutral: "flat"}
	for _, c := range Categories {
		items := s.Items(c)
		if len(items) != 1 || items[0].Title != want[c] {
			t.Fatalf("Items(%s) = %+v", c, items)
		}
	}
	if s.Items(Sentiment("bogus")) != nil {
		t.Fatal("unknown category should return nil")
	}
}

func TestEmpty(t *testing.T) {
	t.Parallel()

	var s Snapshot
	if !s.Empty() {
		t.Fatal("zero snapshot should be empty")
	}
	s.Append(Item{Title: "x", Sentiment: Neutral})
	if s.Empty() {
		t.Fatal("snapshot with one item should not be empty")
	}
}
