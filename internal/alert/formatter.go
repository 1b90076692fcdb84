// Package alert renders decisions and liquidations into chat messages.
package alert

import (
	"fmt"
	"math"
	"strings"

	"oiwatch/internal/changes"
	"oiwatch/internal/signal"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Direction markers. A value's marker depends only on its sign.
const (
	MarkerUp   = "🟩"
	MarkerDown = "🟥"
	MarkerFlat = "⬜"
	NA         = "N/A"
)

var printer = message.NewPrinter(language.English)

// Report carries the market context shown under every alert.
type Report struct {
	Symbol        string
	Price         *float64
	OI            changes.ChangeSet
	PriceChanges  changes.ChangeSet
	VolumeChanges changes.ChangeSet
	Volume24h     *float64
	FundingRate   changes.Pct // percent, e.g. 0.01 for 0.01%
}

// Marker returns the direction marker for p, or "" when unavailable.
func Marker(p changes.Pct) string {
	v, ok := p.Get()
	switch {
	case !ok:
		return ""
	case v > 0:
		return MarkerUp
	case v < 0:
		return MarkerDown
	default:
		return MarkerFlat
	}
}

// FormatPct renders p with its marker and three decimals, or N/A.
func FormatPct(p changes.Pct) string {
	v, ok := p.Get()
	if !ok {
		return NA
	}
	if v == 0 {
		v = 0 // drop negative zero
	}
	return fmt.Sprintf("%s%.3f%%", Marker(p), v)
}

func formatPrice(v float64) string {
	if math.Abs(v) >= 1 {
		return "$" + printer.Sprintf("%.2f", v)
	}
	return fmt.Sprintf("$%.6f", v)
}

func formatPricePtr(p *float64) string {
	if p == nil {
		return NA
	}
	return formatPrice(*p)
}

func humanUSD(x float64) string {
	ax := math.Abs(x)
	switch {
	case ax >= 1_000_000_000:
		return fmt.Sprintf("$%.2fB", x/1_000_000_000)
	case ax >= 1_000_000:
		return fmt.Sprintf("$%.2fM", x/1_000_000)
	case ax >= 1_000:
		return fmt.Sprintf("$%.2fK", x/1_000)
	default:
		return fmt.Sprintf("$%.2f", x)
	}
}

// writeTree renders a boxed block: ┌ title, ├ rows, └ last row.
func writeTree(b *strings.Builder, title string, cs changes.ChangeSet) {
	fmt.Fprintf(b, "┌ %s\n", title)
	tracked := cs.Tracked()
	if len(tracked) == 0 {
		fmt.Fprintf(b, "└ %s\n", NA)
		return
	}
	for i, h := range tracked {
		branch := "├"
		if i == len(tracked)-1 {
			branch = "└"
		}
		fmt.Fprintf(b, "%s %s (%s)\n", branch, FormatPct(cs[h]), h)
	}
}

// FormatReport renders the market context block.
func FormatReport(r Report) string {
	var b strings.Builder

	writeTree(&b, "🌐 Open Interest", r.OI)
	b.WriteString("\n")
	writeTree(&b, "📈 Price change", r.PriceChanges)
	b.WriteString("\n")

	for _, h := range r.VolumeChanges.Tracked() {
		fmt.Fprintf(&b, "📊 Volume change %s (%s)\n", FormatPct(r.VolumeChanges[h]), h)
	}
	if r.Volume24h != nil {
		fmt.Fprintf(&b, "📊 Volume: %s (24h)\n", printer.Sprintf("%.2f", *r.Volume24h))
	} else {
		fmt.Fprintf(&b, "📊 Volume: %s (24h)\n", NA)
	}

	fmt.Fprintf(&b, "➕ Funding rate %s\n", FormatPct(r.FundingRate))
	fmt.Fprintf(&b, "💲Price %s", formatPricePtr(r.Price))
	return b.String()
}

// FormatSignal renders a triggered long decision followed by its market context.
func FormatSignal(d signal.Decision, r Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🟢 NEW LONG SIGNAL #%s\n\n", d.Symbol)
	fmt.Fprintf(&b, "PAIR: %s\n", d.Symbol)
	fmt.Fprintf(&b, "Price: %s\n\n", formatPrice(d.Price))
	fmt.Fprintf(&b, "Stop Loss: %s\n\n", formatPrice(d.StopLoss))
	for i, tp := range d.TakeProfits {
		fmt.Fprintf(&b, "TP%d: %s\n", i+1, formatPrice(tp))
	}
	fmt.Fprintf(&b, "\nReason: %s\n\n", d.Reason)
	b.WriteString(FormatReport(r))
	return b.String()
}

// FormatLiquidation renders a large liquidation followed by its market context.
func FormatLiquidation(ev signal.LiquidationEvent, r Report) string {
	var b strings.Builder
	notional, _ := ev.Notional().Float64()
	price, _ := ev.Price.Float64()

	side := "Long"
	if ev.Side == signal.SideShort {
		side = "Short"
	}
	fmt.Fprintf(&b, "💥 #%s %s liquidation %s\n", ev.Symbol, side, humanUSD(notional))
	fmt.Fprintf(&b, "Qty %s @ %s\n\n", ev.Quantity.String(), formatPrice(price))
	b.WriteString(FormatReport(r))
	return b.String()
}

// FormatUpdate renders the periodic per-symbol market update.
func FormatUpdate(r Report) string {
	return fmt.Sprintf("📣 #%s %s | market update\n\n%s", r.Symbol, formatPricePtr(r.Price), FormatReport(r))
}
