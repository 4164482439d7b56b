// Package news defines the categorized snapshot model shared by the
// feed client, the change detector, and the composer.
package news

// Sentiment is one of the three fixed news categories.
type Sentiment string

const (
	Bullish Sentiment = "bullish"
	Bearish Sentiment = "bearish"
	Neutral Sentiment = "neutral"
)

// Categories lists the fixed categories in display order.
var Categories = [...]Sentiment{Bullish, Bearish, Neutral}

// Item is a single news entry. Items are treated as immutable values;
// identity for change detection is the exact Title text.
type Item struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt string    `json:"published_at"` // feed-provided, passed through verbatim
	Currencies  []string  `json:"currencies"`
	Sentiment   Sentiment `json:"sentiment"`
}

// Snapshot is the categorized collection of items at one point in time.
// Every item in a category slice carries that category's sentiment tag.
type Snapshot struct {
	Bullish []Item `json:"bullish"`
	Bearish []Item `json:"bearish"`
	Neutral []Item `json:"neutral"`
}

// Items returns the ordered item sequence for the given category.
func (s Snapshot) Items(c Sentiment) []Item {
	switch c {
	case Bullish:
		return s.Bullish
	case Bearish:
		return s.Bearish
	case Neutral:
		return s.Neutral
	}
	return nil
}

// Append routes an item into its category slice by sentiment tag.
// Items with an unknown sentiment are dropped.
func (s *Snapshot) Append(it Item) {
	switch it.Sentiment {
	case Bullish:
		s.Bullish = append(s.Bullish, it)
	case Bearish:
		s.Bearish = append(s.Bearish, it)
	case Neutral:
		s.Neutral = append(s.Neutral, it)
	}
}

// Total counts items across all categories.
func (s Snapshot) Total() int {
	return len(s.Bullish) + len(s.Bearish) + len(s.Neutral)
}

// Empty reports whether all three categories are empty.
func (s Snapshot) Empty() bool { return s.Total() == 0 }
