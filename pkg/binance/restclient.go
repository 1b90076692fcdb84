package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrNoData is returned when the exchange answers but has too few points to
// derive a value.
var ErrNoData = errors.New("binance: not enough data")

type RESTClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	return &RESTClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *RESTClient) HTTPClient() *http.Client {
	return c.httpClient
}

// getJSON issues a GET against path and decodes the body into out.
func (c *RESTClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	// Construct the GET request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var apiErr APIError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Msg != "" {
			return fmt.Errorf("binance error %d (http %d): %s", apiErr.Code, resp.StatusCode, apiErr.Msg)
		}
		return fmt.Errorf("binance error (http %d): %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseTicker(raw Ticker24hResponse) (Ticker, error) {
	t := Ticker{Symbol: raw.Symbol}
	var err error
	if t.LastPrice, err = strconv.ParseFloat(raw.LastPrice, 64); err != nil {
		return Ticker{}, fmt.Errorf("parse lastPrice %q: %w", raw.LastPrice, err)
	}
	if t.PriceChangePercent, err = strconv.ParseFloat(raw.PriceChangePercent, 64); err != nil {
		return Ticker{}, fmt.Errorf("parse priceChangePercent %q: %w", raw.PriceChangePercent, err)
	}
	if t.Volume, err = strconv.ParseFloat(raw.Volume, 64); err != nil {
		return Ticker{}, fmt.Errorf("parse volume %q: %w", raw.Volume, err)
	}
	if t.QuoteVolume, err = strconv.ParseFloat(raw.QuoteVolume, 64); err != nil {
		return Ticker{}, fmt.Errorf("parse quoteVolume %q: %w", raw.QuoteVolume, err)
	}
	return t, nil
}

// Ticker24h fetches the rolling 24h ticker for one symbol.
func (c *RESTClient) Ticker24h(ctx context.Context, symbol string) (Ticker, error) {
	var raw Ticker24hResponse
	if err := c.getJSON(ctx, "/fapi/v1/ticker/24hr", url.Values{"symbol": {symbol}}, &raw); err != nil {
		return Ticker{}, err
	}
	return parseTicker(raw)
}

// Tickers24h fetches the 24h ticker of every listed symbol. Rows that fail to
// parse are skipped.
func (c *RESTClient) Tickers24h(ctx context.Context) ([]Ticker, error) {
	var raw []Ticker24hResponse
	if err := c.getJSON(ctx, "/fapi/v1/ticker/24hr", nil, &raw); err != nil {
		return nil, err
	}

	out := make([]Ticker, 0, len(raw))
	for _, r := range raw {
		t, err := parseTicker(r)
		if err != nil {
			continue // skip malformed row
		}
		out = append(out, t)
	}
	return out, nil
}

// OpenInterestChange returns the percentage change between the two most recent
// open-interest points for the given period.
func (c *RESTClient) OpenInterestChange(ctx context.Context, symbol string, period OIPeriod) (float64, error) {
	if !period.IsValid() {
		return 0, fmt.Errorf("invalid open interest period: %s", period)
	}

	q := url.Values{
		"symbol": {symbol},
		"period": {string(period)},
		"limit":  {"2"}, // last two points are enough for the change
	}
	var hist []OpenInterestHist
	if err := c.getJSON(ctx, "/futures/data/openInterestHist", q, &hist); err != nil {
		return 0, err
	}
	if len(hist) < 2 {
		return 0, ErrNoData
	}

	prev, err := strconv.ParseFloat(hist[len(hist)-2].SumOpenInterest, 64)
	if err != nil {
		return 0, fmt.Errorf("parse sumOpenInterest: %w", err)
	}
	last, err := strconv.ParseFloat(hist[len(hist)-1].SumOpenInterest, 64)
	if err != nil {
		return 0, fmt.Errorf("parse sumOpenInterest: %w", err)
	}
	if prev == 0 {
		return 0, ErrNoData
	}
	return (last - prev) / prev * 100, nil
}

// FundingRate returns the latest funding rate as a percentage.
func (c *RESTClient) FundingRate(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{"symbol": {symbol}, "limit": {"1"}}
	var rates []FundingRateResponse
	if err := c.getJSON(ctx, "/fapi/v1/fundingRate", q, &rates); err != nil {
		return 0, err
	}
	if len(rates) == 0 {
		return 0, ErrNoData
	}
	rate, err := strconv.ParseFloat(rates[len(rates)-1].FundingRate, 64)
	if err != nil {
		return 0, fmt.Errorf("parse fundingRate: %w", err)
	}
	return rate * 100, nil
}

// TradingSymbols returns perpetual contracts currently in TRADING status.
func (c *RESTClient) TradingSymbols(ctx context.Context) (map[string]struct{}, error) {
	var info ExchangeInfoResponse
	if err := c.getJSON(ctx, "/fapi/v1/exchangeInfo", nil, &info); err != nil {
		return nil, err
	}

	out := make(map[string]struct{}, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status == StatusTrading && s.ContractType == ContractPerpetual {
			out[s.Symbol] = struct{}{}
		}
	}
	return out, nil
}
