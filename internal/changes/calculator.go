package changes

import (
	"errors"
	"fmt"
	"sort"

	"oiwatch/internal/memorystore"
)

// ErrInvalidOffset is returned for lookback offsets below one sample.
var ErrInvalidOffset = errors.New("lookback offset must be >= 1")

// SampleReader is the part of the sample store the calculator needs.
type SampleReader interface {
	ChangeSince(symbol string, metric memorystore.Metric, offset int) (float64, bool)
}

// Calculator derives a ChangeSet per metric from a sample store using a fixed
// horizon-to-offset mapping.
type Calculator struct {
	offsets map[Horizon]int
	order   []Horizon
}

// NewCalculator validates the offsets. Offsets are sample counts back from the
// latest sample, so they equal minutes at a one-sample-per-minute cadence.
func NewCalculator(offsets map[Horizon]int) (*Calculator, error) {
	if len(offsets) == 0 {
		return nil, fmt.Errorf("no offsets configured")
	}
	c := &Calculator{offsets: make(map[Horizon]int, len(offsets))}
	for h, off := range offsets {
		if off < 1 {
			return nil, fmt.Errorf("%s: %w (got %d)", h, ErrInvalidOffset, off)
		}
		c.offsets[h] = off
		c.order = append(c.order, h)
	}
	sort.Slice(c.order, func(i, j int) bool { return c.offsets[c.order[i]] < c.offsets[c.order[j]] })
	return c, nil
}

// ParseOffsets converts config labels into horizons.
func ParseOffsets(raw map[string]int) (map[Horizon]int, error) {
	out := make(map[Horizon]int, len(raw))
	for label, off := range raw {
		h, err := ParseHorizon(label)
		if err != nil {
			return nil, err
		}
		out[h] = off
	}
	return out, nil
}

// MaxOffset returns the largest configured offset; the store capacity must
// exceed it for that horizon to ever become available.
func (c *Calculator) MaxOffset() int {
	return c.offsets[c.order[len(c.order)-1]]
}

// Compute returns the changes for every configured horizon. Horizons without
// enough history are Unavailable. It never fails.
func (c *Calculator) Compute(r SampleReader, symbol string, metric memorystore.Metric) ChangeSet {
	cs := make(ChangeSet, len(c.order)+1)
	for _, h := range c.order {
		cs[h] = Maybe(r.ChangeSince(symbol, metric, c.offsets[h]))
	}
	return cs
}
