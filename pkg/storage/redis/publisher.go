// Package redis caches the latest market snapshot per symbol.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// KeyPrefix is prepended to the symbol to form the cache key.
const KeyPrefix = "snapshot:"

// Key returns the cache key for symbol.
func Key(symbol string) string {
	return KeyPrefix + symbol
}

// Publisher writes JSON snapshots with a TTL and reads them back.
type Publisher struct {
	client *goredis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewPublisher connects to redisURL and verifies the connection.
func NewPublisher(ctx context.Context, redisURL, password string, ttl time.Duration, logger *zap.Logger) (*Publisher, error) {
	opt, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if password != "" {
		opt.Password = password
	}

	client := goredis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewPublisherFromClient(client, ttl, logger), nil
}

func NewPublisherFromClient(client *goredis.Client, ttl time.Duration, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, ttl: ttl, logger: logger.Named("redis")}
}

// Publish stores v as JSON under snapshot:{symbol}.
func (p *Publisher) Publish(ctx context.Context, symbol string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal failed: %w", err)
	}
	if err := p.client.Set(ctx, Key(symbol), data, p.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}
	p.logger.Debug("snapshot published", zap.String("symbol", symbol), zap.Int("bytes", len(data)))
	return nil
}

// Get decodes the cached snapshot for symbol into out. It returns false when
// nothing is cached.
func (p *Publisher) Get(ctx context.Context, symbol string, out any) (bool, error) {
	data, err := p.client.Get(ctx, Key(symbol)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis GET failed: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("json unmarshal failed: %w", err)
	}
	return true, nil
}

func (p *Publisher) Close() error {
	return p.client.Close()
}
