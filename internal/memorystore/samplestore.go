package memorystore

import (
	"sort"
	"sync"
)

// SampleStore keeps a bounded rolling window of samples per symbol and metric.
// Different symbols never contend on the same lock.
type SampleStore struct {
	capacity int

	globalMu sync.RWMutex
	data     map[string]*symbolSamples
}

type symbolSamples struct {
	mu      sync.Mutex
	windows map[Metric]*window
}

// NewSampleStore creates a store holding at most capacity samples per symbol and
// metric. The given symbols get empty windows up front.
func NewSampleStore(capacity int, symbols ...string) *SampleStore {
	if capacity < 1 {
		capacity = 1
	}
	s := &SampleStore{
		capacity: capacity,
		data:     make(map[string]*symbolSamples, len(symbols)),
	}
	for _, sym := range symbols {
		s.data[sym] = &symbolSamples{windows: make(map[Metric]*window)}
	}
	return s
}

// Capacity returns the per-window sample limit.
func (s *SampleStore) Capacity() int {
	return s.capacity
}

func (s *SampleStore) get(symbol string, create bool) *symbolSamples {
	// Fast path: shared lock for existing symbols
	s.globalMu.RLock()
	store, ok := s.data[symbol]
	s.globalMu.RUnlock()
	if ok || !create {
		return store
	}

	s.globalMu.Lock()
	defer s.globalMu.Unlock()
	if store, ok = s.data[symbol]; !ok {
		store = &symbolSamples{windows: make(map[Metric]*window)}
		s.data[symbol] = store
	}
	return store
}

// Record appends a sample, evicting the oldest one when the window is full.
func (s *SampleStore) Record(symbol string, metric Metric, value float64) {
	store := s.get(symbol, true)

	store.mu.Lock()
	defer store.mu.Unlock()
	w, ok := store.windows[metric]
	if !ok {
		w = newWindow(s.capacity)
		store.windows[metric] = w
	}
	w.push(value)
}

// ChangeSince returns the percentage change between the latest sample and the
// sample offset positions before it. ok is false when offset < 1, when fewer
// than offset+1 samples exist, or when the base value is zero.
func (s *SampleStore) ChangeSince(symbol string, metric Metric, offset int) (pct float64, ok bool) {
	if offset < 1 {
		return 0, false
	}
	store := s.get(symbol, false)
	if store == nil {
		return 0, false
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	w, found := store.windows[metric]
	if !found {
		return 0, false
	}
	latest, ok := w.back(0)
	if !ok {
		return 0, false
	}
	base, ok := w.back(offset)
	if !ok || base.Value == 0 {
		return 0, false
	}
	return (latest.Value - base.Value) / base.Value * 100, true
}

// Latest returns the most recent sample.
func (s *SampleStore) Latest(symbol string, metric Metric) (Sample, bool) {
	store := s.get(symbol, false)
	if store == nil {
		return Sample{}, false
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	w, ok := store.windows[metric]
	if !ok {
		return Sample{}, false
	}
	return w.back(0)
}

// Len returns the number of samples currently held.
func (s *SampleStore) Len(symbol string, metric Metric) int {
	store := s.get(symbol, false)
	if store == nil {
		return 0
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if w, ok := store.windows[metric]; ok {
		return w.n
	}
	return 0
}

// Samples returns a copy of the window, oldest first.
func (s *SampleStore) Samples(symbol string, metric Metric) []Sample {
	store := s.get(symbol, false)
	if store == nil {
		return nil
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if w, ok := store.windows[metric]; ok {
		return w.snapshot()
	}
	return nil
}

// Symbols returns the tracked symbols in sorted order.
func (s *SampleStore) Symbols() []string {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()

	out := make([]string, 0, len(s.data))
	for sym := range s.data {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// CountAll returns the total number of samples held across all symbols.
func (s *SampleStore) CountAll() int {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()

	total := 0
	for _, store := range s.data {
		store.mu.Lock()
		for _, w := range store.windows {
			total += w.n
		}
		store.mu.Unlock()
	}
	return total
}
