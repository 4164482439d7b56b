package engine

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusSent           Status = "sent"
	StatusSkipped        Status = "skipped"
	StatusDeliveryFailed Status = "delivery_failed"
)

// SkipReason explains why a cycle produced no notification.
type SkipReason string

const (
	SkipFetchError     SkipReason = "fetch-error"
	SkipNoContent      SkipReason = "no-content"
	SkipNotSignificant SkipReason = "not-significant"
)

// Outcome is the result of one update cycle. Exactly one of the three
// statuses applies; Reason is set only for StatusSkipped and Err only
// for fetch or delivery failures.
type Outcome struct {
	CycleID string
	Status  Status
	Reason  SkipReason
	Err     error

	NewItems   int
	TotalItems int

	At   time.Time
	Took time.Duration
}

func (o Outcome) Sent() bool { return o.Status == StatusSent }

// Describe renders the outcome for an on-demand caller.
func (o Outcome) Describe() string {
	switch o.Status {
	case StatusSent:
		return fmt.Sprintf("✅ News update sent to the channel (%d items, %d new)", o.TotalItems, o.NewItems)
	case StatusDeliveryFailed:
		return fmt.Sprintf("❌ Delivery failed: %v", o.Err)
	default:
		switch o.Reason {
		case SkipFetchError:
			return fmt.Sprintf("⚠️ Feed unavailable: %v", o.Err)
		case SkipNoContent:
			return "ℹ️ Feed returned no news this cycle"
		case SkipNotSignificant:
			return fmt.Sprintf("ℹ️ No significant news updates (%d new items)", o.NewItems)
		}
		return "ℹ️ Skipped"
	}
}
