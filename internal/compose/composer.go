// Package compose renders a snapshot into the outgoing Telegram
// message. Rendering is best-effort by contract: a malformed
// notification beats a silently dropped cycle.
package compose

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"cryptopulse/internal/news"
)

const (
	// MaxItemsPerCategory caps how many entries a category block shows.
	// Inherited tuning constant; do not derive.
	MaxItemsPerCategory = 5

	// maxTitleRunes is the hard cap on rendered title length. Longer
	// titles are cut to 97 runes plus the marker.
	maxTitleRunes = 100

	truncationMarker = "..."

	header     = "🔔 *CRYPTO NEWS SENTIMENT UPDATE* 🔔"
	disclaimer = "_This is not financial advice. DYOR!_ 🧠"

	// noCurrencies is rendered when an item has no associated codes.
	noCurrencies = "general market"

	footerTimeFormat = "2006-01-02 15:04"
)

var categoryHeaders = map[news.Sentiment]string{
	news.Bullish: "📈 *BULLISH NEWS*",
	news.Bearish: "📉 *BEARISH NEWS*",
	news.Neutral: "⚖️ *NEUTRAL NEWS*",
}

// Composer builds notification text. The clock is injectable so the
// footer timestamp is testable; everything else is pure.
type Composer struct {
	now func() time.Time
}

func New() *Composer { return &Composer{now: time.Now} }

func NewWithClock(now func() time.Time) *Composer {
	if now == nil {
		now = time.Now
	}
	return &Composer{now: now}
}

// Compose renders the message: header, optional narrative block, one
// block per non-empty category in fixed order, then the footer. It
// never fails; an internal panic degrades to an error-description
// string.
func (c *Composer) Compose(s news.Snapshot, narrative string) (msg string) {
	defer func() {
		if r := recover(); r != nil {
			msg = fmt.Sprintf("Error formatting news: %v", r)
		}
	}()

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")

	if n := strings.TrimSpace(narrative); n != "" {
		b.WriteString("*AI SENTIMENT ANALYSIS*\n")
		b.WriteString(n)
		b.WriteString("\n\n")
	}

	for _, cat := range news.Categories {
		writeCategory(&b, cat, s.Items(cat))
	}

	b.WriteString("_Updated on ")
	b.WriteString(c.now().UTC().Format(footerTimeFormat))
	b.WriteString(" UTC_\n")
	b.WriteString(disclaimer)
	return b.String()
}

func writeCategory(b *strings.Builder, cat news.Sentiment, items []news.Item) {
	if len(items) == 0 {
		return
	}
	b.WriteString(categoryHeaders[cat])
	b.WriteString("\n\n")

	n := len(items)
	if n > MaxItemsPerCategory {
		n = MaxItemsPerCategory
	}
	for i := 0; i < n; i++ {
		it := items[i]
		fmt.Fprintf(b, "%d. [%s](%s) [%s]\n", i+1, truncateTitle(it.Title), it.URL, currencyList(it.Currencies))
		fmt.Fprintf(b, "   *Source:* %s\n\n", it.Source)
	}
}

func truncateTitle(title string) string {
	if utf8.RuneCountInString(title) <= maxTitleRunes {
		return title
	}
	rs := []rune(title)
	return string(rs[:maxTitleRunes-len(truncationMarker)]) + truncationMarker
}

func currencyList(codes []string) string {
	if len(codes) == 0 {
		return noCurrencies
	}
	return strings.Join(codes, ", ")
}
