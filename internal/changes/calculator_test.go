package changes

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"oiwatch/internal/memorystore"
)

var defaultOffsets = map[Horizon]int{H1m: 1, H5m: 5, H15m: 15, H1h: 60}

// go test -v --run TestNewCalculatorRejectsZeroOffset
func TestNewCalculatorRejectsZeroOffset(t *testing.T) {
	_, err := NewCalculator(map[Horizon]int{H1m: 0})
	if !errors.Is(err, ErrInvalidOffset) {
		t.Fatalf("expected ErrInvalidOffset, got %v", err)
	}
	if _, err := NewCalculator(nil); err == nil {
		t.Fatal("expected error for empty offsets")
	}
}

// go test -v --run TestComputeInsufficientHistory
func TestComputeInsufficientHistory(t *testing.T) {
	calc, err := NewCalculator(defaultOffsets)
	if err != nil {
		t.Fatalf("new calculator: %v", err)
	}
	if calc.MaxOffset() != 60 {
		t.Errorf("expected max offset 60, got %d", calc.MaxOffset())
	}

	store := memorystore.NewSampleStore(61)
	for i := 0; i < 6; i++ {
		store.Record("XUSDT", memorystore.MetricPrice, 100+float64(i))
	}

	cs := calc.Compute(store, "XUSDT", memorystore.MetricPrice)
	if len(cs) != 4 {
		t.Fatalf("expected 4 tracked horizons, got %v", cs)
	}
	if v, ok := cs.Get(H1m).Get(); !ok || math.Abs(v-(105.0-104.0)/104.0*100) > 1e-9 {
		t.Errorf("unexpected 1m change: %v", cs.Get(H1m))
	}
	if v, ok := cs.Get(H5m).Get(); !ok || math.Abs(v-5) > 1e-9 {
		t.Errorf("unexpected 5m change: %v", cs.Get(H5m))
	}
	if cs.Get(H15m).Valid() || cs.Get(H1h).Valid() {
		t.Errorf("15m and 1h must be unavailable: %v", cs)
	}
	if _, tracked := cs[H24h]; tracked {
		t.Error("24h is not computed from the window")
	}
}

// go test -v --run TestUnavailableIsNotZero
func TestUnavailableIsNotZero(t *testing.T) {
	cs := ChangeSet{H1m: Some(-1), H5m: Unavailable}
	if cs.AllNegative() {
		t.Fatal("an unavailable entry must fail the all-negative check")
	}
	if cs.With(H5m, Some(-0.1)).AllNegative() != true {
		t.Fatal("expected all negative once filled")
	}
	if cs.Get(H5m).Valid() {
		t.Fatal("With must not mutate the receiver")
	}
	if (ChangeSet{}).AllNegative() {
		t.Fatal("empty set is never all negative")
	}
	if (ChangeSet{H1m: Some(0)}).AllNegative() {
		t.Fatal("zero is not negative")
	}
}

// go test -v --run TestPriceWithExternal24h
func TestPriceWithExternal24h(t *testing.T) {
	calc, _ := NewCalculator(defaultOffsets)
	store := memorystore.NewSampleStore(61)
	store.Record("XUSDT", memorystore.MetricPrice, 10)

	cs := calc.Compute(store, "XUSDT", memorystore.MetricPrice).With(H24h, Some(-3.2))
	got := cs.Tracked()
	want := []Horizon{H1m, H5m, H15m, H1h, H24h}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
	if v, _ := cs.Get(H24h).Get(); v != -3.2 {
		t.Errorf("24h should be copied, got %v", v)
	}
}

// go test -v --run TestParseOffsets
func TestParseOffsets(t *testing.T) {
	got, err := ParseOffsets(map[string]int{"1m": 1, "1h": 60})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got[H1h] != 60 {
		t.Errorf("unexpected offsets %v", got)
	}
	if _, err := ParseOffsets(map[string]int{"2m": 2}); err == nil {
		t.Error("expected error for unknown label")
	}
}

// go test -v --run TestPctJSON
func TestPctJSON(t *testing.T) {
	cs := ChangeSet{H5m: Some(-1.5), H1h: Unavailable}
	data, err := json.Marshal(cs)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{"1h":null,"5m":-1.5}` {
		t.Errorf("unexpected json %s", data)
	}

	var back ChangeSet
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back.Get(H1h).Valid() {
		t.Error("null must decode as unavailable")
	}
	if v, ok := back.Get(H5m).Get(); !ok || v != -1.5 {
		t.Errorf("unexpected 5m %v %v", v, ok)
	}
}
