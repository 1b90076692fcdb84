// Package changes turns sampled values into per-horizon percentage changes.
package changes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Horizon is a change label such as "5m" or "24h".
type Horizon string

const (
	H1m  Horizon = "1m"
	H5m  Horizon = "5m"
	H15m Horizon = "15m"
	H1h  Horizon = "1h"
	H24h Horizon = "24h"
)

// Horizons lists every known horizon in display order.
var Horizons = []Horizon{H1m, H5m, H15m, H1h, H24h}

// ParseHorizon validates a configured label.
func ParseHorizon(s string) (Horizon, error) {
	for _, h := range Horizons {
		if string(h) == s {
			return h, nil
		}
	}
	return "", fmt.Errorf("unknown horizon %q", s)
}

// Pct is a percentage change that may be unavailable.
type Pct struct {
	value float64
	ok    bool
}

// Unavailable is the zero Pct.
var Unavailable = Pct{}

// Some wraps an available percentage.
func Some(v float64) Pct { return Pct{value: v, ok: true} }

// Maybe wraps v when ok is true.
func Maybe(v float64, ok bool) Pct {
	if !ok {
		return Unavailable
	}
	return Some(v)
}

// Get returns the value and whether it is available.
func (p Pct) Get() (float64, bool) { return p.value, p.ok }

// Valid reports whether the value is available.
func (p Pct) Valid() bool { return p.ok }

// Negative reports whether the value is available and below zero.
func (p Pct) Negative() bool { return p.ok && p.value < 0 }

func (p Pct) String() string {
	if !p.ok {
		return "N/A"
	}
	return fmt.Sprintf("%.3f%%", p.value)
}

// MarshalJSON encodes an unavailable value as null.
func (p Pct) MarshalJSON() ([]byte, error) {
	if !p.ok {
		return []byte("null"), nil
	}
	return json.Marshal(p.value)
}

func (p *Pct) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = Unavailable
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode pct: %w", err)
	}
	*p = Some(v)
	return nil
}

// ChangeSet maps the horizons tracked for one metric to their change. A horizon
// that is tracked but could not be computed is present as Unavailable; a horizon
// that is not tracked for the metric is absent.
type ChangeSet map[Horizon]Pct

// Get returns the change at h, Unavailable when not tracked.
func (cs ChangeSet) Get(h Horizon) Pct {
	return cs[h]
}

// With returns a copy of cs with h set to p.
func (cs ChangeSet) With(h Horizon, p Pct) ChangeSet {
	out := make(ChangeSet, len(cs)+1)
	for k, v := range cs {
		out[k] = v
	}
	out[h] = p
	return out
}

// AllNegative is true only when the set is non-empty and every tracked horizon
// is available and below zero.
func (cs ChangeSet) AllNegative() bool {
	if len(cs) == 0 {
		return false
	}
	for _, p := range cs {
		if !p.Negative() {
			return false
		}
	}
	return true
}

// Tracked returns the horizons present in cs in display order.
func (cs ChangeSet) Tracked() []Horizon {
	out := make([]Horizon, 0, len(cs))
	for _, h := range Horizons {
		if _, ok := cs[h]; ok {
			out = append(out, h)
		}
	}
	return out
}

func (cs ChangeSet) String() string {
	parts := make([]string, 0, len(cs))
	for _, h := range cs.Tracked() {
		parts = append(parts, fmt.Sprintf("%s=%s", h, cs[h]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// FromPeriods builds a change set from values fetched per horizon outside the
// sample store (e.g. exchange open-interest history).
func FromPeriods(values map[Horizon]Pct) ChangeSet {
	out := make(ChangeSet, len(values))
	for h, p := range values {
		out[h] = p
	}
	return out
}
