package binance

import "encoding/json"

// APIError is the error envelope returned by Binance on non-2xx responses.
type APIError struct {
	Code int    `json:"code"` // negative error code, e.g. -1121 for an invalid symbol
	Msg  string `json:"msg"`
}

// Ticker24hResponse is one entry of /fapi/v1/ticker/24hr. Numbers arrive as strings.
type Ticker24hResponse struct {
	Symbol             string `json:"symbol"`
	PriceChangePercent string `json:"priceChangePercent"`
	LastPrice          string `json:"lastPrice"`
	Volume             string `json:"volume"`      // base asset volume
	QuoteVolume        string `json:"quoteVolume"` // quote asset volume
	CloseTime          int64  `json:"closeTime"`
}

// Ticker is the parsed 24h ticker.
type Ticker struct {
	Symbol             string
	LastPrice          float64
	PriceChangePercent float64
	Volume             float64
	QuoteVolume        float64
}

// OpenInterestHist is one point of /futures/data/openInterestHist.
type OpenInterestHist struct {
	Symbol               string `json:"symbol"`
	SumOpenInterest      string `json:"sumOpenInterest"`
	SumOpenInterestValue string `json:"sumOpenInterestValue"`
	Timestamp            int64  `json:"timestamp"`
}

// FundingRateResponse is one entry of /fapi/v1/fundingRate.
type FundingRateResponse struct {
	Symbol      string `json:"symbol"`
	FundingRate string `json:"fundingRate"` // fraction, "0.0001" = 0.01%
	FundingTime int64  `json:"fundingTime"`
}

type ExchangeInfoResponse struct {
	Symbols []struct {
		Symbol       string `json:"symbol"`
		Status       string `json:"status"`       // e.g. "TRADING"
		ContractType string `json:"contractType"` // e.g. "PERPETUAL"
		QuoteAsset   string `json:"quoteAsset"`   // e.g. "USDT"
	} `json:"symbols"`
}

// ForceOrderEvent is the payload of the liquidation stream. Combined-stream
// connections wrap it in StreamEnvelope.
type ForceOrderEvent struct {
	EventType string           `json:"e"` // "forceOrder"
	EventTime int64            `json:"E"`
	Order     ForceOrderDetail `json:"o"`
}

type ForceOrderDetail struct {
	Symbol       string `json:"s"`
	Side         string `json:"S"` // SELL closes a long, BUY closes a short
	OrderType    string `json:"o"`
	Quantity     string `json:"q"`
	Price        string `json:"p"`
	AveragePrice string `json:"ap"`
	Status       string `json:"X"`
	TradeTime    int64  `json:"T"`
}

type StreamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}
