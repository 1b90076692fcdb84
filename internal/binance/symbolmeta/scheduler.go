package symbolmeta

import (
	"context"
	"time"

	"oiwatch/internal/instrumentation"
	"oiwatch/internal/universe"

	"go.uber.org/zap"
)

// MidnightLoader refreshes the universe once at startup and then at every UTC
// midnight.
type MidnightLoader struct {
	Universe *universe.Universe
	Source   universe.Source
	Logger   *zap.Logger
	Metrics  *instrumentation.Metrics

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// NextMidnight returns the first UTC midnight strictly after now.
func NextMidnight(now time.Time) time.Time {
	return now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
}

// Start runs the refresh loop in a goroutine until ctx is cancelled.
func (m *MidnightLoader) Start(ctx context.Context) {
	go m.Run(ctx)
}

// Run blocks until ctx is cancelled.
func (m *MidnightLoader) Run(ctx context.Context) {
	now, after := m.now, m.after
	if now == nil {
		now = time.Now
	}
	if after == nil {
		after = time.After
	}

	// Run immediately once at startup
	m.RunOnce(ctx)

	for {
		t := now()
		select {
		case <-ctx.Done():
			return
		case <-after(NextMidnight(t).Sub(t)):
			m.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single refresh. On failure the previous universe stays in
// effect.
func (m *MidnightLoader) RunOnce(ctx context.Context) {
	symbols, err := m.Universe.RefreshFrom(ctx, m.Source)
	if err != nil {
		m.Metrics.RecordRefresh("failed", 0)
		m.Logger.Error("universe refresh failed, keeping previous symbols",
			zap.Int("kept", len(m.Universe.Current().Symbols)), zap.Error(err))
		return
	}
	m.Metrics.RecordRefresh("ok", len(symbols))
	m.Logger.Info("universe refreshed", zap.Int("symbols", len(symbols)))
}
