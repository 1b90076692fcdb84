// Package universe owns the set of tracked symbols together with their sample
// history. Both are replaced as one unit on every refresh.
package universe

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"oiwatch/internal/memorystore"
)

// Listing is one instrument from the exchange listing with its 24h quote volume.
type Listing struct {
	Symbol      string
	QuoteVolume float64
}

// Source provides the listing and the set of currently valid symbols.
type Source interface {
	Listing(ctx context.Context) ([]Listing, error)
	ValidSymbols(ctx context.Context) (map[string]struct{}, error)
}

// Filter holds the admission criteria applied on refresh.
type Filter struct {
	QuoteSuffix   string
	VolumeCeiling float64 // exclusive; zero disables the ceiling
}

// Snapshot is an immutable view of the universe. The Store belongs to the
// snapshot and is discarded on the next refresh.
type Snapshot struct {
	Symbols   []string
	Store     *memorystore.SampleStore
	UpdatedAt time.Time

	index map[string]struct{}
}

// Contains reports whether symbol is tracked in this snapshot.
func (s *Snapshot) Contains(symbol string) bool {
	_, ok := s.index[symbol]
	return ok
}

// Universe is safe for concurrent use.
type Universe struct {
	filter   Filter
	capacity int
	now      func() time.Time

	state atomic.Pointer[Snapshot]
}

// New creates an empty universe whose stores hold capacity samples per metric.
func New(filter Filter, capacity int) *Universe {
	u := &Universe{filter: filter, capacity: capacity, now: time.Now}
	u.install(nil)
	return u
}

// Current returns the snapshot in effect. Callers should hold on to it for the
// whole of a cycle.
func (u *Universe) Current() *Snapshot {
	return u.state.Load()
}

// Symbols returns the tracked symbols.
func (u *Universe) Symbols() []string {
	syms := u.Current().Symbols
	out := make([]string, len(syms))
	copy(out, syms)
	return out
}

// Contains reports whether symbol is currently tracked.
func (u *Universe) Contains(symbol string) bool {
	return u.Current().Contains(symbol)
}

// Seed installs a fixed symbol list, bypassing the listing filter.
func (u *Universe) Seed(symbols []string) []string {
	return u.install(symbols)
}

// Refresh recomputes the universe from listing and valid and swaps it in. Every
// symbol starts with an empty window.
func (u *Universe) Refresh(listing []Listing, valid map[string]struct{}) []string {
	var keep []string
	for _, l := range listing {
		if !strings.HasSuffix(l.Symbol, u.filter.QuoteSuffix) {
			continue
		}
		if u.filter.VolumeCeiling > 0 && l.QuoteVolume >= u.filter.VolumeCeiling {
			continue
		}
		if _, ok := valid[l.Symbol]; !ok {
			continue
		}
		keep = append(keep, l.Symbol)
	}
	return u.install(keep)
}

// RefreshFrom fetches listing and valid set from src and applies them. On any
// fetch error the current universe is left untouched.
func (u *Universe) RefreshFrom(ctx context.Context, src Source) ([]string, error) {
	listing, err := src.Listing(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	valid, err := src.ValidSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch valid symbols: %w", err)
	}
	return u.Refresh(listing, valid), nil
}

func (u *Universe) install(symbols []string) []string {
	index := make(map[string]struct{}, len(symbols))
	uniq := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, dup := index[s]; dup {
			continue
		}
		index[s] = struct{}{}
		uniq = append(uniq, s)
	}
	sort.Strings(uniq)

	u.state.Store(&Snapshot{
		Symbols:   uniq,
		Store:     memorystore.NewSampleStore(u.capacity, uniq...),
		UpdatedAt: u.now(),
		index:     index,
	})

	out := make([]string, len(uniq))
	copy(out, uniq)
	return out
}
