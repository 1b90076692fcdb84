package stream

import (
	"context"
	"errors"
	"sync"

	"oiwatch/internal/alert"
	"oiwatch/internal/binance/snapshot"
	"oiwatch/internal/changes"
	"oiwatch/internal/instrumentation"
	"oiwatch/internal/journal"
	"oiwatch/internal/notify"
	"oiwatch/internal/signal"
	"oiwatch/internal/universe"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Observer fetches the on-demand market snapshot for a liquidated symbol.
type Observer interface {
	Observe(ctx context.Context, symbol string) snapshot.Observation
}

// Notifier accepts rendered alerts without blocking.
type Notifier interface {
	Enqueue(msg notify.Message) bool
}

type Options struct {
	Universe     *universe.Universe
	Observer     Observer
	Calculator   *changes.Calculator
	Notifier     Notifier
	Journal      journal.Journal // optional
	Threshold    decimal.Decimal
	UniverseOnly bool
	DedupeSize   int
	Workers      int
	Logger       *zap.Logger
	Metrics      *instrumentation.Metrics
}

// LiquidationHandler turns force-order stream messages into alerts. Snapshot
// fetch and dispatch run on a bounded pool so the reader never waits on REST;
// an event that arrives while every worker is busy is dropped.
type LiquidationHandler struct {
	opts   Options
	seen   *recentKeys
	sem    chan struct{}
	wg     sync.WaitGroup
	logger *zap.Logger
}

func NewLiquidationHandler(opts Options) *LiquidationHandler {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &LiquidationHandler{
		opts:   opts,
		seen:   newRecentKeys(opts.DedupeSize),
		sem:    make(chan struct{}, opts.Workers),
		logger: opts.Logger.Named("liquidation"),
	}
}

// MakeMessageHandler returns a function that handles incoming WebSocket
// messages. Alerts are dispatched under ctx.
func (h *LiquidationHandler) MakeMessageHandler(ctx context.Context) func(msg []byte) {
	return func(msg []byte) {
		raw, err := decodeForceOrder(msg)
		if errors.Is(err, errNotForceOrder) {
			return // Ignore non-liquidation frames (e.g., subscription responses)
		}
		if err != nil {
			h.opts.Metrics.RecordLiquidation("malformed")
			h.logger.Warn("failed to parse liquidation payload", zap.Error(err))
			return
		}

		ev, err := toLiquidation(raw)
		if err != nil {
			h.opts.Metrics.RecordLiquidation("malformed")
			h.logger.Warn("dropping malformed liquidation", zap.String("symbol", raw.Order.Symbol), zap.Error(err))
			return
		}

		if h.opts.UniverseOnly && !h.opts.Universe.Contains(ev.Symbol) {
			h.opts.Metrics.RecordLiquidation("untracked")
			return
		}
		if !signal.EvaluateLiquidation(ev, h.opts.Threshold) {
			h.opts.Metrics.RecordLiquidation("below_threshold")
			return
		}
		// Only large events are remembered; duplicates of small ones are harmless
		if h.seen.Seen(ev.Key()) {
			h.opts.Metrics.RecordLiquidation("duplicate")
			h.logger.Debug("duplicate liquidation", zap.String("symbol", ev.Symbol))
			return
		}

		if ctx.Err() != nil {
			return
		}
		select {
		case h.sem <- struct{}{}:
		default:
			// every worker is busy; the reader must not wait
			h.opts.Metrics.RecordLiquidation("dropped")
			h.logger.Warn("liquidation workers busy, dropping event",
				zap.String("symbol", ev.Symbol), zap.String("side", string(ev.Side)))
			return
		}
		h.wg.Add(1)
		go func() {
			defer func() { <-h.sem; h.wg.Done() }()
			h.alert(ctx, ev)
		}()
	}
}

// Wait blocks until in-flight alerts are dispatched.
func (h *LiquidationHandler) Wait() {
	h.wg.Wait()
}

func (h *LiquidationHandler) alert(ctx context.Context, ev signal.LiquidationEvent) {
	obs := h.opts.Observer.Observe(ctx, ev.Symbol)

	// Price and volume history is read from the current universe without
	// recording a sample; untracked symbols come out as unavailable.
	px, vol := obs.Changes(h.opts.Calculator, h.opts.Universe.Current().Store)
	text := alert.FormatLiquidation(ev, obs.Report(px, vol))

	notional, _ := ev.Notional().Float64()
	price, _ := ev.Price.Float64()

	if !h.opts.Notifier.Enqueue(notify.Message{Kind: journal.KindLiquidation, Symbol: ev.Symbol, Text: text}) {
		h.opts.Metrics.RecordLiquidation("dropped")
		return
	}
	h.opts.Metrics.RecordLiquidation("alerted")
	h.logger.Info("large liquidation",
		zap.String("symbol", ev.Symbol),
		zap.String("side", string(ev.Side)),
		zap.Float64("notional", notional))

	if h.opts.Journal == nil {
		return
	}
	e := journal.NewEntry(journal.KindLiquidation, "liq|"+ev.Key(), ev.Symbol, price, text)
	e.Notional = notional
	if err := h.opts.Journal.SaveAlert(ctx, e); err != nil {
		h.logger.Warn("failed to journal liquidation", zap.String("symbol", ev.Symbol), zap.Error(err))
	}
}
