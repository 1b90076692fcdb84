package binance

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T, routes map[string]http.HandlerFunc) *RESTClient {
	t.Helper()
	mux := http.NewServeMux()
	for path, h := range routes {
		mux.HandleFunc(path, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewRESTClient(srv.URL, 5*time.Second)
}

func write(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

// go test -v --run TestTicker24h
func TestTicker24h(t *testing.T) {
	client := newTestServer(t, map[string]http.HandlerFunc{
		"/fapi/v1/ticker/24hr": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("symbol"); got != "XUSDT" {
				t.Errorf("expected symbol query, got %q", got)
			}
			write(`{"symbol":"XUSDT","priceChangePercent":"-2.150","lastPrice":"1.2345","volume":"1000.5","quoteVolume":"1235.1"}`)(w, r)
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tk, err := client.Ticker24h(ctx, "XUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tk.LastPrice != 1.2345 || tk.PriceChangePercent != -2.15 || tk.Volume != 1000.5 || tk.QuoteVolume != 1235.1 {
		t.Errorf("unexpected ticker: %+v", tk)
	}
}

// go test -v --run TestTickers24hSkipsBadRows
func TestTickers24hSkipsBadRows(t *testing.T) {
	client := newTestServer(t, map[string]http.HandlerFunc{
		"/fapi/v1/ticker/24hr": write(`[
			{"symbol":"AUSDT","priceChangePercent":"1","lastPrice":"2","volume":"3","quoteVolume":"4"},
			{"symbol":"BUSDT","priceChangePercent":"x","lastPrice":"2","volume":"3","quoteVolume":"4"}
		]`),
	})

	got, err := client.Tickers24h(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Symbol != "AUSDT" {
		t.Errorf("expected only AUSDT, got %+v", got)
	}
}

// go test -v --run TestOpenInterestChange
func TestOpenInterestChange(t *testing.T) {
	client := newTestServer(t, map[string]http.HandlerFunc{
		"/futures/data/openInterestHist": func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("period") != "15m" || q.Get("limit") != "2" {
				t.Errorf("unexpected query: %v", q)
			}
			write(`[{"symbol":"XUSDT","sumOpenInterest":"200","timestamp":1},{"symbol":"XUSDT","sumOpenInterest":"196","timestamp":2}]`)(w, r)
		},
	})

	pct, err := client.OpenInterestChange(context.Background(), "XUSDT", Period15Min)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(pct-(-2)) > 1e-9 {
		t.Errorf("expected -2%%, got %v", pct)
	}

	if _, err := client.OpenInterestChange(context.Background(), "XUSDT", OIPeriod("1m")); err == nil {
		t.Error("expected error for unsupported period")
	}
}

// go test -v --run TestOpenInterestChangeNoData
func TestOpenInterestChangeNoData(t *testing.T) {
	client := newTestServer(t, map[string]http.HandlerFunc{
		"/futures/data/openInterestHist": write(`[{"symbol":"XUSDT","sumOpenInterest":"200","timestamp":1}]`),
	})
	if _, err := client.OpenInterestChange(context.Background(), "XUSDT", Period5Min); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

// go test -v --run TestFundingRate
func TestFundingRate(t *testing.T) {
	client := newTestServer(t, map[string]http.HandlerFunc{
		"/fapi/v1/fundingRate": write(`[{"symbol":"XUSDT","fundingRate":"0.00010000","fundingTime":1}]`),
	})
	rate, err := client.FundingRate(context.Background(), "XUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(rate-0.01) > 1e-12 {
		t.Errorf("expected 0.01%%, got %v", rate)
	}
}

// go test -v --run TestTradingSymbols
func TestTradingSymbols(t *testing.T) {
	client := newTestServer(t, map[string]http.HandlerFunc{
		"/fapi/v1/exchangeInfo": write(`{"symbols":[
			{"symbol":"AUSDT","status":"TRADING","contractType":"PERPETUAL","quoteAsset":"USDT"},
			{"symbol":"BUSDT","status":"SETTLING","contractType":"PERPETUAL","quoteAsset":"USDT"},
			{"symbol":"AUSDT_250328","status":"TRADING","contractType":"CURRENT_QUARTER","quoteAsset":"USDT"}
		]}`),
	})
	got, err := client.TradingSymbols(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := got["AUSDT"]; !ok || len(got) != 1 {
		t.Errorf("expected only AUSDT, got %v", got)
	}
}

// go test -v --run TestAPIError
func TestAPIError(t *testing.T) {
	client := newTestServer(t, map[string]http.HandlerFunc{
		"/fapi/v1/ticker/24hr": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
		},
	})
	_, err := client.Ticker24h(context.Background(), "NOPE")
	if err == nil {
		t.Fatal("expected error")
	}
	if want := "binance error -1121 (http 400): Invalid symbol."; err.Error() != want {
		t.Errorf("got %q want %q", err.Error(), want)
	}
}
