// Package signal decides whether a set of changes warrants a long alert, and
// whether a liquidation is large enough to report.
package signal

import (
	"fmt"

	"oiwatch/internal/changes"

	"github.com/shopspring/decimal"
)

// Thresholds are drop magnitudes in percentage points; a 5m change of -2.0
// satisfies a threshold of 1.5.
type Thresholds struct {
	OIDrop5m         float64
	PriceDrop5m      float64
	VolumeDrop5m     float64
	StopLossFraction float64
	RewardMultiples  []float64
	TakeProfitTiers  int
}

// Evaluator applies the long-signal rule. It holds no state.
type Evaluator struct {
	th Thresholds
}

func NewEvaluator(th Thresholds) *Evaluator {
	if len(th.RewardMultiples) == 0 {
		th.RewardMultiples = []float64{2}
	}
	if th.TakeProfitTiers < len(th.RewardMultiples) {
		th.TakeProfitTiers = len(th.RewardMultiples)
	}
	return &Evaluator{th: th}
}

// dropExceeds reports whether the 5m change is a drop larger than threshold.
func dropExceeds(cs changes.ChangeSet, threshold float64) bool {
	v, ok := cs.Get(changes.H5m).Get()
	return ok && -v > threshold
}

// Evaluate triggers when open interest fell at every horizon with a 5m drop
// beyond OIDrop5m, confirmed by price or volume falling at every horizon with
// their own 5m drop beyond threshold. Any unavailable input fails closed.
func (e *Evaluator) Evaluate(symbol string, price float64, oi, px, vol changes.ChangeSet) Decision {
	d := Decision{Symbol: symbol, Price: price}

	switch {
	case price <= 0:
		d.Reason = "price unavailable"
		return d
	case !oi.AllNegative():
		d.Reason = "open interest not contracting at every horizon"
		return d
	case !dropExceeds(oi, e.th.OIDrop5m):
		d.Reason = fmt.Sprintf("open interest 5m drop within %.2f", e.th.OIDrop5m)
		return d
	}

	priceOK := px.AllNegative() && dropExceeds(px, e.th.PriceDrop5m)
	volumeOK := vol.AllNegative() && dropExceeds(vol, e.th.VolumeDrop5m)
	if !priceOK && !volumeOK {
		d.Reason = "neither price nor volume confirms"
		return d
	}

	d.Triggered = true
	switch {
	case priceOK && volumeOK:
		d.Reason = "open interest, price and volume falling"
	case priceOK:
		d.Reason = "open interest and price falling"
	default:
		d.Reason = "open interest and volume falling"
	}
	d.StopLoss, d.TakeProfits = e.riskEnvelope(price)
	return d
}

func (e *Evaluator) riskEnvelope(price float64) (float64, []float64) {
	stop := price * (1 - e.th.StopLossFraction)
	risk := price - stop

	tps := make([]float64, e.th.TakeProfitTiers)
	for i := range tps {
		m := e.th.RewardMultiples[len(e.th.RewardMultiples)-1]
		if i < len(e.th.RewardMultiples) {
			m = e.th.RewardMultiples[i]
		}
		tps[i] = price + m*risk
	}
	return stop, tps
}

// EvaluateLiquidation reports whether the event's notional exceeds threshold.
func EvaluateLiquidation(ev LiquidationEvent, threshold decimal.Decimal) bool {
	return ev.Notional().GreaterThan(threshold)
}
