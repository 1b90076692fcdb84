package snapshot

import (
	"context"
	"errors"
	"sort"
	"time"

	"oiwatch/internal/alert"
	"oiwatch/internal/changes"
	"oiwatch/internal/instrumentation"
	"oiwatch/internal/memorystore"
	"oiwatch/pkg/binance"

	"go.uber.org/zap"
)

// MarketData is the part of the Binance REST client used for per-symbol data.
type MarketData interface {
	Ticker24h(ctx context.Context, symbol string) (binance.Ticker, error)
	OpenInterestChange(ctx context.Context, symbol string, period binance.OIPeriod) (float64, error)
	FundingRate(ctx context.Context, symbol string) (float64, error)
}

// Observation is everything fetched for one symbol at one point in time. A nil
// Ticker means the ticker fetch failed.
type Observation struct {
	Symbol      string
	Ticker      *binance.Ticker
	OI          changes.ChangeSet
	FundingRate changes.Pct
	ObservedAt  time.Time
}

// Price returns the last price, or 0 when unknown.
func (o Observation) Price() float64 {
	if o.Ticker == nil {
		return 0
	}
	return o.Ticker.LastPrice
}

// Changes computes price and volume change sets from r. The price 24h change
// comes from the exchange ticker. Without a ticker no sample was recorded this
// cycle, so every horizon is unavailable rather than the previous cycle's value.
func (o Observation) Changes(calc *changes.Calculator, r changes.SampleReader) (px, vol changes.ChangeSet) {
	px = calc.Compute(r, o.Symbol, memorystore.MetricPrice)
	vol = calc.Compute(r, o.Symbol, memorystore.MetricVolume)
	if o.Ticker == nil {
		return unavailable(px).With(changes.H24h, changes.Unavailable), unavailable(vol)
	}
	return px.With(changes.H24h, changes.Some(o.Ticker.PriceChangePercent)), vol
}

// unavailable keeps the tracked horizons of cs and clears their values.
func unavailable(cs changes.ChangeSet) changes.ChangeSet {
	out := make(changes.ChangeSet, len(cs))
	for h := range cs {
		out[h] = changes.Unavailable
	}
	return out
}

// Report builds the market context block shown under alerts.
func (o Observation) Report(px, vol changes.ChangeSet) alert.Report {
	r := alert.Report{
		Symbol:        o.Symbol,
		OI:            o.OI,
		PriceChanges:  px,
		VolumeChanges: vol,
		FundingRate:   o.FundingRate,
	}
	if o.Ticker != nil {
		price, volume := o.Ticker.LastPrice, o.Ticker.Volume
		r.Price, r.Volume24h = &price, &volume
	}
	return r
}

// MarketSnapshot is the cached JSON view of an observation.
type MarketSnapshot struct {
	Symbol        string            `json:"symbol"`
	Price         *float64          `json:"price"`
	Volume24h     *float64          `json:"volume_24h"`
	PriceChanges  changes.ChangeSet `json:"price_changes"`
	VolumeChanges changes.ChangeSet `json:"volume_changes"`
	OpenInterest  changes.ChangeSet `json:"open_interest"`
	FundingRate   changes.Pct       `json:"funding_rate"`
	ObservedAt    time.Time         `json:"observed_at"`
}

// Snapshot returns the cacheable view of o.
func (o Observation) Snapshot(px, vol changes.ChangeSet) MarketSnapshot {
	r := o.Report(px, vol)
	return MarketSnapshot{
		Symbol:        o.Symbol,
		Price:         r.Price,
		Volume24h:     r.Volume24h,
		PriceChanges:  px,
		VolumeChanges: vol,
		OpenInterest:  o.OI,
		FundingRate:   o.FundingRate,
		ObservedAt:    o.ObservedAt,
	}
}

// Market fetches observations. OI horizons are served by exchange periods; each
// distinct period is fetched once per observation.
type Market struct {
	data      MarketData
	oiPeriods map[changes.Horizon]binance.OIPeriod
	timeout   time.Duration
	logger    *zap.Logger
	metrics   *instrumentation.Metrics
}

func NewMarket(data MarketData, oiPeriods map[changes.Horizon]binance.OIPeriod, timeout time.Duration,
	logger *zap.Logger, metrics *instrumentation.Metrics) *Market {
	return &Market{
		data:      data,
		oiPeriods: oiPeriods,
		timeout:   timeout,
		logger:    logger.Named("market"),
		metrics:   metrics,
	}
}

// ParseOIPeriods validates the configured horizon to period mapping.
func ParseOIPeriods(raw map[string]string) (map[changes.Horizon]binance.OIPeriod, error) {
	out := make(map[changes.Horizon]binance.OIPeriod, len(raw))
	for label, period := range raw {
		h, err := changes.ParseHorizon(label)
		if err != nil {
			return nil, err
		}
		p, err := binance.ParseOIPeriod(period)
		if err != nil {
			return nil, err
		}
		out[h] = p
	}
	return out, nil
}

func (m *Market) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.timeout)
}

func (m *Market) fetchFailed(endpoint, symbol string, err error) {
	m.metrics.RecordFetchError(endpoint)
	if errors.Is(err, binance.ErrNoData) {
		m.logger.Debug("no data", zap.String("endpoint", endpoint), zap.String("symbol", symbol))
		return
	}
	m.logger.Warn("fetch failed", zap.String("endpoint", endpoint), zap.String("symbol", symbol), zap.Error(err))
}

// Observe fetches ticker, open interest and funding for symbol. Failed fetches
// become unavailable values; Observe itself never fails.
func (m *Market) Observe(ctx context.Context, symbol string) Observation {
	obs := Observation{Symbol: symbol, ObservedAt: time.Now().UTC()}

	fctx, cancel := m.withTimeout(ctx)
	ticker, err := m.data.Ticker24h(fctx, symbol)
	cancel()
	if err != nil {
		m.fetchFailed("ticker", symbol, err)
	} else {
		obs.Ticker = &ticker
	}

	obs.OI = m.openInterest(ctx, symbol)

	fctx, cancel = m.withTimeout(ctx)
	rate, err := m.data.FundingRate(fctx, symbol)
	cancel()
	if err != nil {
		m.fetchFailed("funding", symbol, err)
	} else {
		obs.FundingRate = changes.Some(rate)
	}

	return obs
}

func (m *Market) openInterest(ctx context.Context, symbol string) changes.ChangeSet {
	periods := make([]binance.OIPeriod, 0, len(m.oiPeriods))
	seen := make(map[binance.OIPeriod]bool, len(m.oiPeriods))
	for _, p := range m.oiPeriods {
		if !seen[p] {
			seen[p] = true
			periods = append(periods, p)
		}
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Minutes() < periods[j].Minutes() })

	fetched := make(map[binance.OIPeriod]changes.Pct, len(periods))
	for _, p := range periods {
		fctx, cancel := m.withTimeout(ctx)
		v, err := m.data.OpenInterestChange(fctx, symbol, p)
		cancel()
		if err != nil {
			m.fetchFailed("open_interest", symbol, err)
			fetched[p] = changes.Unavailable
			continue
		}
		fetched[p] = changes.Some(v)
	}

	values := make(map[changes.Horizon]changes.Pct, len(m.oiPeriods))
	for h, p := range m.oiPeriods {
		values[h] = fetched[p]
	}
	return changes.FromPeriods(values)
}
