// Package monitor drives the periodic evaluation of every tracked symbol.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"oiwatch/internal/alert"
	"oiwatch/internal/binance/snapshot"
	"oiwatch/internal/changes"
	"oiwatch/internal/instrumentation"
	"oiwatch/internal/journal"
	"oiwatch/internal/memorystore"
	"oiwatch/internal/notify"
	"oiwatch/internal/signal"
	"oiwatch/internal/universe"

	"go.uber.org/zap"
)

// Observer fetches the per-symbol market data.
type Observer interface {
	Observe(ctx context.Context, symbol string) snapshot.Observation
}

// Notifier accepts rendered alerts without blocking.
type Notifier interface {
	Enqueue(msg notify.Message) bool
}

// SnapshotPublisher caches the latest snapshot per symbol.
type SnapshotPublisher interface {
	Publish(ctx context.Context, symbol string, v any) error
}

// Options configures a Monitor. Journal and Publisher are optional.
type Options struct {
	Universe      *universe.Universe
	Observer      Observer
	Calculator    *changes.Calculator
	Evaluator     *signal.Evaluator
	Notifier      Notifier
	Journal       journal.Journal
	Publisher     SnapshotPublisher
	Workers       int
	ReportUpdates bool
	Logger        *zap.Logger
	Metrics       *instrumentation.Metrics
}

// Monitor runs evaluation cycles.
type Monitor struct {
	opts   Options
	logger *zap.Logger

	lastCycle atomic.Int64 // unix seconds of the last completed cycle
}

func New(opts Options) *Monitor {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Monitor{opts: opts, logger: opts.Logger.Named("monitor")}
}

// CycleResult summarises one cycle.
type CycleResult struct {
	Symbols   int
	Triggered []signal.Decision
	Elapsed   time.Duration
}

// LastCycle returns when the last cycle completed, zero if none has.
func (m *Monitor) LastCycle() time.Time {
	ts := m.lastCycle.Load()
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}

// Start runs a cycle immediately and then every interval until ctx is cancelled.
// A cycle that overruns delays the next tick rather than overlapping it.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.RunCycle(ctx)
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunCycle evaluates every symbol of the current universe once. The whole
// cycle reads and writes the same universe snapshot.
func (m *Monitor) RunCycle(ctx context.Context) CycleResult {
	start := time.Now()
	snap := m.opts.Universe.Current()

	sem := make(chan struct{}, m.opts.Workers) // bounded fan-out
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		triggered []signal.Decision
	)

	for _, symbol := range snap.Symbols {
		if ctx.Err() != nil {
			break
		}
		symbol := symbol // capture
		sem <- struct{}{}
		wg.Add(1)

		go func() {
			defer func() { <-sem; wg.Done() }()

			d := m.evaluateSymbol(ctx, snap, symbol)
			if d.Triggered {
				mu.Lock()
				triggered = append(triggered, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	res := CycleResult{Symbols: len(snap.Symbols), Triggered: triggered, Elapsed: time.Since(start)}
	m.lastCycle.Store(time.Now().Unix())
	m.opts.Metrics.RecordCycle(res.Elapsed, res.Symbols)
	m.logger.Info("cycle completed",
		zap.Int("symbols", res.Symbols),
		zap.Int("signals", len(triggered)),
		zap.Int("samples", snap.Store.CountAll()),
		zap.Duration("elapsed", res.Elapsed))
	return res
}

func (m *Monitor) evaluateSymbol(ctx context.Context, snap *universe.Snapshot, symbol string) signal.Decision {
	obs := m.opts.Observer.Observe(ctx, symbol)

	// Samples are only recorded for a complete, valid ticker
	if obs.Ticker != nil && obs.Ticker.LastPrice > 0 {
		snap.Store.Record(symbol, memorystore.MetricPrice, obs.Ticker.LastPrice)
		snap.Store.Record(symbol, memorystore.MetricVolume, obs.Ticker.Volume)
	}

	px, vol := obs.Changes(m.opts.Calculator, snap.Store)
	d := m.opts.Evaluator.Evaluate(symbol, obs.Price(), obs.OI, px, vol)
	report := obs.Report(px, vol)

	m.logger.Debug("symbol evaluated",
		zap.String("symbol", symbol),
		zap.Bool("triggered", d.Triggered),
		zap.String("reason", d.Reason),
		zap.Stringer("oi", obs.OI),
		zap.Stringer("price", px),
		zap.Stringer("volume", vol))

	if d.Triggered {
		m.opts.Metrics.RecordSignal("triggered")
		text := alert.FormatSignal(d, report)
		m.dispatch(ctx, journal.KindSignal, d, text, obs)
	} else {
		m.opts.Metrics.RecordSignal("skipped")
	}

	if m.opts.ReportUpdates && obs.Ticker != nil {
		m.enqueue(journal.KindReport, symbol, alert.FormatUpdate(report))
	}

	if m.opts.Publisher != nil {
		if err := m.opts.Publisher.Publish(ctx, symbol, obs.Snapshot(px, vol)); err != nil {
			m.logger.Warn("failed to publish snapshot", zap.String("symbol", symbol), zap.Error(err))
		}
	}
	return d
}

// enqueue hands text to the notifier and reports whether it was accepted.
func (m *Monitor) enqueue(kind, symbol, text string) bool {
	if m.opts.Notifier.Enqueue(notify.Message{Kind: kind, Symbol: symbol, Text: text}) {
		return true
	}
	m.logger.Warn("alert dropped, queue full", zap.String("kind", kind), zap.String("symbol", symbol))
	return false
}

func (m *Monitor) dispatch(ctx context.Context, kind string, d signal.Decision, text string, obs snapshot.Observation) {
	m.enqueue(kind, d.Symbol, text)
	m.logger.Info("long signal",
		zap.String("symbol", d.Symbol),
		zap.Float64("price", d.Price),
		zap.Float64("stop_loss", d.StopLoss),
		zap.Float64s("take_profits", d.TakeProfits),
		zap.String("reason", d.Reason))

	if m.opts.Journal == nil {
		return
	}
	key := fmt.Sprintf("%s|%s|%d", kind, d.Symbol, obs.ObservedAt.Unix())
	e := journal.NewEntry(kind, key, d.Symbol, d.Price, text)
	e.StopLoss, e.TakeProfit = d.StopLoss, d.TakeProfits
	if err := m.opts.Journal.SaveAlert(ctx, e); err != nil {
		m.logger.Warn("failed to journal signal", zap.String("symbol", d.Symbol), zap.Error(err))
	}
}
