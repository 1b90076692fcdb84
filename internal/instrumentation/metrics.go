package instrumentation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the watcher. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	CyclesTotal     prometheus.Counter
	CycleDurationMs prometheus.Histogram
	LastCycleUnix   prometheus.Gauge
	SymbolsTracked  prometheus.Gauge

	SignalsTotal      *prometheus.CounterVec
	LiquidationsTotal *prometheus.CounterVec
	FetchErrorsTotal  *prometheus.CounterVec
	DeliveriesTotal   *prometheus.CounterVec
	RefreshesTotal    *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CyclesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "oiwatch_cycles_total",
			Help: "Completed evaluation cycles",
		}),
		CycleDurationMs: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "oiwatch_cycle_duration_ms",
			Help:    "Wall time of one evaluation cycle in milliseconds",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}),
		LastCycleUnix: f.NewGauge(prometheus.GaugeOpts{
			Name: "oiwatch_last_cycle_unixtime",
			Help: "Completion time of the last evaluation cycle",
		}),
		SymbolsTracked: f.NewGauge(prometheus.GaugeOpts{
			Name: "oiwatch_symbols_tracked",
			Help: "Symbols in the current universe",
		}),
		SignalsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "oiwatch_signals_total",
			Help: "Per-symbol evaluations by outcome",
		}, []string{"outcome"}),
		LiquidationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "oiwatch_liquidations_total",
			Help: "Liquidation stream messages by outcome",
		}, []string{"outcome"}),
		FetchErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "oiwatch_fetch_errors_total",
			Help: "Failed market data fetches by endpoint",
		}, []string{"endpoint"}),
		DeliveriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "oiwatch_deliveries_total",
			Help: "Alert deliveries by outcome",
		}, []string{"outcome"}),
		RefreshesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "oiwatch_universe_refreshes_total",
			Help: "Universe refresh attempts by outcome",
		}, []string{"outcome"}),
	}
}

// RecordCycle records a finished cycle.
func (m *Metrics) RecordCycle(elapsed time.Duration, symbols int) {
	if m == nil {
		return
	}
	m.CyclesTotal.Inc()
	m.CycleDurationMs.Observe(float64(elapsed.Milliseconds()))
	m.LastCycleUnix.Set(float64(time.Now().Unix()))
	m.SymbolsTracked.Set(float64(symbols))
}

func (m *Metrics) RecordSignal(outcome string) {
	if m == nil {
		return
	}
	m.SignalsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordLiquidation(outcome string) {
	if m == nil {
		return
	}
	m.LiquidationsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordFetchError(endpoint string) {
	if m == nil {
		return
	}
	m.FetchErrorsTotal.WithLabelValues(endpoint).Inc()
}

func (m *Metrics) RecordDelivery(outcome string) {
	if m == nil {
		return
	}
	m.DeliveriesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordRefresh(outcome string, symbols int) {
	if m == nil {
		return
	}
	m.RefreshesTotal.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		m.SymbolsTracked.Set(float64(symbols))
	}
}
