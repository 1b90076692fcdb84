package binance

import "fmt"

// OIPeriod is an aggregation period accepted by the open-interest history endpoint.
type OIPeriod string

const (
	Period5Min  OIPeriod = "5m"
	Period15Min OIPeriod = "15m"
	Period30Min OIPeriod = "30m"
	Period1H    OIPeriod = "1h"
	Period2H    OIPeriod = "2h"
	Period4H    OIPeriod = "4h"
	Period6H    OIPeriod = "6h"
	Period12H   OIPeriod = "12h"
	Period1D    OIPeriod = "1d"
)

// validOIPeriods maps each period to its length in minutes.
var validOIPeriods = map[OIPeriod]int{
	Period5Min:  5,
	Period15Min: 15,
	Period30Min: 30,
	Period1H:    60,
	Period2H:    120,
	Period4H:    240,
	Period6H:    360,
	Period12H:   720,
	Period1D:    1440, // 24*60
}

// IsValid checks if the period is accepted by the exchange.
func (p OIPeriod) IsValid() bool {
	_, ok := validOIPeriods[p]
	return ok
}

// Minutes returns the period length.
func (p OIPeriod) Minutes() int {
	return validOIPeriods[p]
}

// ParseOIPeriod parses a configured period string.
func ParseOIPeriod(s string) (OIPeriod, error) {
	p := OIPeriod(s)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid open interest period: %s", s)
	}
	return p, nil
}

const (
	ContractPerpetual = "PERPETUAL"
	StatusTrading     = "TRADING"
)
