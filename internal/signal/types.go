package signal

import "github.com/shopspring/decimal"

// Decision is the outcome of evaluating one symbol in one cycle.
type Decision struct {
	Symbol      string
	Triggered   bool
	Reason      string
	Price       float64
	StopLoss    float64
	TakeProfits []float64
}

// Side of the position that was force-closed.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// LiquidationEvent is a single force-order report from the exchange.
type LiquidationEvent struct {
	Symbol    string
	Side      Side
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	TradeTime int64 // ms since epoch
}

// Notional is price times quantity.
func (e LiquidationEvent) Notional() decimal.Decimal {
	return e.Price.Mul(e.Quantity)
}

// Key identifies the event for duplicate suppression.
func (e LiquidationEvent) Key() string {
	return e.Symbol + "|" + string(e.Side) + "|" + e.Price.String() + "|" + e.Quantity.String() + "|" +
		decimal.NewFromInt(e.TradeTime).String()
}
