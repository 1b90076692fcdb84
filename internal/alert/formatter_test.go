package alert

import (
	"strings"
	"testing"

	"oiwatch/internal/changes"
	"oiwatch/internal/signal"

	"github.com/shopspring/decimal"
)

func ptr(v float64) *float64 { return &v }

// go test -v --run TestFormatPctMarkers
func TestFormatPctMarkers(t *testing.T) {
	cases := []struct {
		in   changes.Pct
		want string
	}{
		{changes.Some(1.23456), "🟩1.235%"},
		{changes.Some(-0.5), "🟥-0.500%"},
		{changes.Some(0), "⬜0.000%"},
		{changes.Some(-0.0), "⬜0.000%"},
		{changes.Unavailable, "N/A"},
	}
	for _, c := range cases {
		if got := FormatPct(c.in); got != c.want {
			t.Errorf("FormatPct(%v) = %q, want %q", c.in, got, c.want)
		}
	}
	if Marker(changes.Unavailable) != "" {
		t.Error("unavailable values carry no marker")
	}
}

// go test -v --run TestFormatReportLayout
func TestFormatReportLayout(t *testing.T) {
	r := Report{
		Symbol: "XUSDT",
		Price:  ptr(1234.5),
		OI: changes.ChangeSet{
			changes.H5m: changes.Some(-2), changes.H1m: changes.Some(-2),
			changes.H24h: changes.Unavailable,
		},
		PriceChanges: changes.ChangeSet{
			changes.H1m: changes.Some(0.25), changes.H24h: changes.Some(-3),
		},
		VolumeChanges: changes.ChangeSet{changes.H1m: changes.Some(0), changes.H1h: changes.Unavailable},
		Volume24h:     ptr(1234567.891),
		FundingRate:   changes.Some(0.01),
	}

	got := FormatReport(r)
	want := strings.Join([]string{
		"┌ 🌐 Open Interest",
		"├ 🟥-2.000% (1m)",
		"├ 🟥-2.000% (5m)",
		"└ N/A (24h)",
		"",
		"┌ 📈 Price change",
		"├ 🟩0.250% (1m)",
		"└ 🟥-3.000% (24h)",
		"",
		"📊 Volume change ⬜0.000% (1m)",
		"📊 Volume change N/A (1h)",
		"📊 Volume: 1,234,567.89 (24h)",
		"➕ Funding rate 🟩0.010%",
		"💲Price $1,234.50",
	}, "\n")
	if got != want {
		t.Errorf("report mismatch:\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}
}

// go test -v --run TestFormatReportMissingValues
func TestFormatReportMissingValues(t *testing.T) {
	got := FormatReport(Report{Symbol: "XUSDT"})
	for _, line := range []string{"└ N/A", "📊 Volume: N/A (24h)", "➕ Funding rate N/A", "💲Price N/A"} {
		if !strings.Contains(got, line) {
			t.Errorf("expected %q in:\n%s", line, got)
		}
	}
	for _, marker := range []string{MarkerUp, MarkerDown, MarkerFlat} {
		if strings.Contains(got, marker) {
			t.Errorf("unexpected marker %s in report without data", marker)
		}
	}
}

// go test -v --run TestFormatSignal
func TestFormatSignal(t *testing.T) {
	d := signal.Decision{
		Symbol:      "XUSDT",
		Triggered:   true,
		Reason:      "open interest and price falling",
		Price:       100,
		StopLoss:    98,
		TakeProfits: []float64{104, 104, 104},
	}
	got := FormatSignal(d, Report{Symbol: "XUSDT", Price: ptr(100)})
	for _, line := range []string{
		"NEW LONG SIGNAL #XUSDT",
		"PAIR: XUSDT",
		"Price: $100.00",
		"Stop Loss: $98.00",
		"TP1: $104.00",
		"TP3: $104.00",
		"💲Price $100.00",
	} {
		if !strings.Contains(got, line) {
			t.Errorf("expected %q in:\n%s", line, got)
		}
	}
}

// go test -v --run TestFormatLiquidation
func TestFormatLiquidation(t *testing.T) {
	ev := signal.LiquidationEvent{
		Symbol:   "BTCUSDT",
		Side:     signal.SideShort,
		Price:    decimal.NewFromInt(50000),
		Quantity: decimal.NewFromInt(15),
	}
	got := FormatLiquidation(ev, Report{Symbol: "BTCUSDT"})
	if !strings.HasPrefix(got, "💥 #BTCUSDT Short liquidation $750.00K\nQty 15 @ $50,000.00\n") {
		t.Errorf("unexpected header:\n%s", got)
	}
}

// go test -v --run TestFormatSmallPrice
func TestFormatSmallPrice(t *testing.T) {
	got := FormatUpdate(Report{Symbol: "PEPEUSDT", Price: ptr(0.0000123)})
	if !strings.HasPrefix(got, "📣 #PEPEUSDT $0.000012 | market update") {
		t.Errorf("unexpected header: %s", got)
	}
}
