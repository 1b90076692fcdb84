package symbolmeta

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"oiwatch/internal/memorystore"
	"oiwatch/internal/universe"

	"go.uber.org/zap"
)

type stubSource struct {
	mu      sync.Mutex
	calls   int
	listing []universe.Listing
	err     error
}

func (s *stubSource) Listing(ctx context.Context) ([]universe.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.listing, s.err
}

func (s *stubSource) ValidSymbols(ctx context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]struct{}{}
	for _, l := range s.listing {
		out[l.Symbol] = struct{}{}
	}
	return out, nil
}

func (s *stubSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// go test -v --run TestNextMidnight
func TestNextMidnight(t *testing.T) {
	cases := []struct {
		now  time.Time
		want time.Time
	}{
		{time.Date(2024, 3, 1, 13, 45, 0, 0, time.UTC), time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		// 22:00 in UTC-5 is 03:00 UTC on the next day
		{time.Date(2024, 3, 1, 22, 0, 0, 0, time.FixedZone("EST", -5*3600)), time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		if got := NextMidnight(c.now); !got.Equal(c.want) {
			t.Errorf("NextMidnight(%v) = %v, want %v", c.now, got, c.want)
		}
	}
}

// go test -v --run TestRunOnceFailureKeepsUniverse
func TestRunOnceFailureKeepsUniverse(t *testing.T) {
	u := universe.New(universe.Filter{QuoteSuffix: "USDT"}, 61)
	u.Seed([]string{"AAAUSDT"})
	u.Current().Store.Record("AAAUSDT", memorystore.MetricPrice, 1)

	src := &stubSource{err: errors.New("listing down")}
	m := &MidnightLoader{Universe: u, Source: src, Logger: zap.NewNop()}
	m.RunOnce(context.Background())

	if !u.Contains("AAAUSDT") {
		t.Fatal("expected previous universe to survive a failed refresh")
	}
	if u.Current().Store.Len("AAAUSDT", memorystore.MetricPrice) != 1 {
		t.Error("expected samples to be kept after a failed refresh")
	}
}

// go test -v --run TestRunRefreshesAtMidnight
func TestRunRefreshesAtMidnight(t *testing.T) {
	u := universe.New(universe.Filter{QuoteSuffix: "USDT"}, 61)
	src := &stubSource{listing: []universe.Listing{{Symbol: "AAAUSDT"}}}

	fire := make(chan time.Time)
	var waits []time.Duration
	var mu sync.Mutex
	m := &MidnightLoader{
		Universe: u,
		Source:   src,
		Logger:   zap.NewNop(),
		now:      func() time.Time { return time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC) },
		after: func(d time.Duration) <-chan time.Time {
			mu.Lock()
			waits = append(waits, d)
			mu.Unlock()
			return fire
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	fire <- time.Now()
	fire <- time.Now()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	if src.count() != 3 {
		t.Errorf("expected startup refresh plus 2 scheduled, got %d", src.count())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(waits) == 0 || waits[0] != time.Hour {
		t.Errorf("expected first wait of 1h, got %v", waits)
	}
	if !u.Contains("AAAUSDT") {
		t.Error("expected refreshed universe")
	}
}
