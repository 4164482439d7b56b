package engine

import "cryptopulse/internal/news"

// DefaultThreshold is the number of net-new items that makes a snapshot
// worth publishing. Inherited tuning constant; do not derive.
const DefaultThreshold = 3

// Detector decides whether a new snapshot differs enough from the last
// published one to warrant a notification. Only additions count:
// items that dropped out of the feed never trigger an update.
type Detector struct {
	threshold int
}

func NewDetector(threshold int) Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Detector{threshold: threshold}
}

func (d Detector) Threshold() int { return d.threshold }

// NewItemCount counts title keys present in cur but absent from prev,
// per category, summed. Duplicate titles within a category count once.
// A nil prev means nothing has been published yet and yields cur's full
// distinct-title count.
func (d Detector) NewItemCount(prev *news.Snapshot, cur news.Snapshot) int {
	total := 0
	for _, c := range news.Categories {
		var seen map[string]struct{}
		if prev != nil {
			seen = make(map[string]struct{}, len(prev.Items(c)))
			for _, it := range prev.Items(c) {
				seen[it.Title] = struct{}{}
			}
		}
		fresh := map[string]struct{}{}
		for _, it := range cur.Items(c) {
			if _, ok := seen[it.Title]; ok {
				continue
			}
			fresh[it.Title] = struct{}{}
		}
		total += len(fresh)
	}
	return total
}

// ShouldNotify reports whether cur should be published given the last
// accepted snapshot. A nil prev (first cycle, or state reset) always
// publishes.
func (d Detector) ShouldNotify(prev *news.Snapshot, cur news.Snapshot) bool {
	if prev == nil {
		return true
	}
	return d.NewItemCount(prev, cur) >= d.threshold
}
