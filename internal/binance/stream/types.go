package stream

import (
	"encoding/json"
	"errors"
	"fmt"

	"oiwatch/internal/signal"
	"oiwatch/pkg/binance"

	"github.com/shopspring/decimal"
)

const forceOrderEvent = "forceOrder"

// errNotForceOrder marks control frames such as subscription acks.
var errNotForceOrder = errors.New("not a force order event")

// decodeForceOrder accepts both the raw payload and the combined-stream
// envelope {"stream": ..., "data": {...}}.
func decodeForceOrder(msg []byte) (binance.ForceOrderEvent, error) {
	var env binance.StreamEnvelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return binance.ForceOrderEvent{}, fmt.Errorf("decode message: %w", err)
	}
	payload := msg
	if len(env.Data) > 0 {
		payload = env.Data
	}

	var ev binance.ForceOrderEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return binance.ForceOrderEvent{}, fmt.Errorf("decode force order: %w", err)
	}
	if ev.EventType != forceOrderEvent {
		return binance.ForceOrderEvent{}, errNotForceOrder
	}
	return ev, nil
}

// toLiquidation validates the order fields. A SELL force order closes a long
// position and a BUY closes a short one. The average fill price is used when
// present.
func toLiquidation(ev binance.ForceOrderEvent) (signal.LiquidationEvent, error) {
	o := ev.Order
	if o.Symbol == "" {
		return signal.LiquidationEvent{}, errors.New("missing symbol")
	}

	var side signal.Side
	switch o.Side {
	case "SELL":
		side = signal.SideLong
	case "BUY":
		side = signal.SideShort
	default:
		return signal.LiquidationEvent{}, fmt.Errorf("unknown side %q", o.Side)
	}

	qty, err := decimal.NewFromString(o.Quantity)
	if err != nil {
		return signal.LiquidationEvent{}, fmt.Errorf("parse quantity %q: %w", o.Quantity, err)
	}

	price := decimal.Zero
	if o.AveragePrice != "" {
		if price, err = decimal.NewFromString(o.AveragePrice); err != nil {
			return signal.LiquidationEvent{}, fmt.Errorf("parse average price %q: %w", o.AveragePrice, err)
		}
	}
	if !price.IsPositive() {
		if price, err = decimal.NewFromString(o.Price); err != nil {
			return signal.LiquidationEvent{}, fmt.Errorf("parse price %q: %w", o.Price, err)
		}
	}
	if !price.IsPositive() || !qty.IsPositive() {
		return signal.LiquidationEvent{}, errors.New("non-positive price or quantity")
	}

	tradeTime := o.TradeTime
	if tradeTime == 0 {
		tradeTime = ev.EventTime
	}

	return signal.LiquidationEvent{
		Symbol:    o.Symbol,
		Side:      side,
		Price:     price,
		Quantity:  qty,
		TradeTime: tradeTime,
	}, nil
}
