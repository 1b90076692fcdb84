package snapshot

import (
	"context"
	"fmt"
	"time"

	"oiwatch/internal/universe"
	"oiwatch/pkg/binance"

	"go.uber.org/zap"
)

// ListingClient is the part of the Binance REST client the loader needs.
type ListingClient interface {
	Tickers24h(ctx context.Context) ([]binance.Ticker, error)
	TradingSymbols(ctx context.Context) (map[string]struct{}, error)
}

// SymbolLoader reads the futures listing from Binance. It implements
// universe.Source.
type SymbolLoader struct {
	RestClient ListingClient
	Timeout    time.Duration
	Logger     *zap.Logger
}

var _ universe.Source = (*SymbolLoader)(nil)

func (l *SymbolLoader) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.Timeout)
}

// Listing returns every listed symbol with its 24h quote volume.
func (l *SymbolLoader) Listing(ctx context.Context) ([]universe.Listing, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	tickers, err := l.RestClient.Tickers24h(ctx)
	if err != nil {
		l.Logger.Error("failed to load 24h tickers", zap.Error(err))
		return nil, fmt.Errorf("load listing: %w", err)
	}

	out := make([]universe.Listing, 0, len(tickers))
	for _, t := range tickers {
		out = append(out, universe.Listing{Symbol: t.Symbol, QuoteVolume: t.QuoteVolume})
	}
	l.Logger.Info("loaded listing", zap.Int("count", len(out)))
	return out, nil
}

// ValidSymbols returns perpetual contracts that are currently trading.
func (l *SymbolLoader) ValidSymbols(ctx context.Context) (map[string]struct{}, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	symbols, err := l.RestClient.TradingSymbols(ctx)
	if err != nil {
		l.Logger.Error("failed to load exchange info", zap.Error(err))
		return nil, fmt.Errorf("load valid symbols: %w", err)
	}
	l.Logger.Info("loaded trading symbols", zap.Int("count", len(symbols)))
	return symbols, nil
}
