package services

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"go_ltp_notifier/models"
)

// MessageFormatter renders quote maps and option chains into the HTML text
// blocks sent to the chat. Formatting is a pure function of its inputs: the
// same quotes and timestamp always produce identical text.
type MessageFormatter struct {
	names map[string]string // instrument key -> display name
	loc   *time.Location
}

// NewMessageFormatter creates a formatter. names maps instrument keys to the
// display names configured for them; unmapped keys fall back to the symbol
// reported by the quote, then to the key itself.
func NewMessageFormatter(names map[string]string, loc *time.Location) *MessageFormatter {
	if names == nil {
		names = make(map[string]string)
	}
	return &MessageFormatter{names: names, loc: loc}
}

// FormatTick renders one market update message for a tick's quotes.
func (f *MessageFormatter) FormatTick(quotes map[string]models.Quote, at time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📈 <b>Market Update</b> — %s", at.In(f.loc).Format("2006-01-02 15:04:05")))

	for _, key := range sortedKeys(quotes) {
		q := quotes[key]
		b.WriteString(fmt.Sprintf("\n%s: %s", html.EscapeString(f.displayName(q)), formatPrice(q.LTP)))
	}
	return b.String()
}

// FormatOptionChain renders an ATM-centered option chain summary. window
// strikes on each side of the at-the-money strike are included.
func (f *MessageFormatter) FormatOptionChain(label string, entries []models.OptionChainEntry, window int, at time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>Option Chain — %s</b> — %s", html.EscapeString(label), at.In(f.loc).Format("2006-01-02 15:04:05")))

	if len(entries) == 0 {
		b.WriteString("\nNo option chain data.")
		return b.String()
	}

	sorted := make([]models.OptionChainEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Strike.LessThan(sorted[j].Strike)
	})

	atm := atmIndex(sorted)
	start := atm - window
	if start < 0 {
		start = 0
	}
	end := atm + window
	if end > len(sorted)-1 {
		end = len(sorted) - 1
	}

	b.WriteString("\n<code>Strike    CE(LTP / OI / IV)       |      PE(LTP / OI / IV)</code>")
	for i := start; i <= end; i++ {
		row := sorted[i]
		mark := ""
		if i == atm {
			mark = " *"
		}
		ce := sideInfo(row.Call)
		pe := sideInfo(row.Put)
		b.WriteString(fmt.Sprintf("\n<code>%6s%s   %-20s | %s</code>", row.Strike.StringFixed(0), mark, ce, pe))
	}
	return b.String()
}

// atmIndex finds the strike closest to the underlying spot, falling back to
// the middle of the chain when no spot price is present.
func atmIndex(sorted []models.OptionChainEntry) int {
	var spot decimal.Decimal
	for _, e := range sorted {
		if e.UnderlyingSpot.IsPositive() {
			spot = e.UnderlyingSpot
			break
		}
	}
	if spot.IsZero() {
		return len(sorted) / 2
	}

	best := 0
	bestDiff := sorted[0].Strike.Sub(spot).Abs()
	for i := 1; i < len(sorted); i++ {
		diff := sorted[i].Strike.Sub(spot).Abs()
		if diff.LessThan(bestDiff) {
			best = i
			bestDiff = diff
		}
	}
	return best
}

// formatPrice renders an LTP, falling back to NA when no price was reported.
// The API encodes "no trade" as a missing or null last_price, which decodes to
// zero; a real LTP of zero does not occur for these instruments.
func formatPrice(ltp decimal.Decimal) string {
	if ltp.IsZero() {
		return "NA"
	}
	return ltp.StringFixed(2)
}

func sideInfo(side *models.OptionSideData) string {
	if side == nil {
		return "NA"
	}
	oi := "NA"
	if side.OpenInterest > 0 {
		oi = fmt.Sprintf("%.0f", side.OpenInterest)
	}
	iv := "NA"
	if side.IV > 0 {
		iv = fmt.Sprintf("%.2f", side.IV)
	}
	return fmt.Sprintf("%s / %s / %s", formatPrice(side.LTP), oi, iv)
}

func (f *MessageFormatter) displayName(q models.Quote) string {
	if name, ok := f.names[q.InstrumentKey]; ok {
		return name
	}
	if q.TradingSymbol != "" {
		return q.TradingSymbol
	}
	return q.InstrumentKey
}

func sortedKeys(quotes map[string]models.Quote) []string {
	keys := make([]string, 0, len(quotes))
	for k := range quotes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
