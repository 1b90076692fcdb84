package binance

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pingInterval = 15 * time.Second
	maxBackoff   = 30 * time.Second
)

// WSClient handles the WebSocket connection to the futures stream and routes
// every message to a handler.
type WSClient struct {
	url         string
	streams     []string
	readTimeout time.Duration
	handler     func([]byte)
	logger      *zap.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected atomic.Bool
	nextID    atomic.Int64
}

// NewWSClient creates a client for url that subscribes to streams on connect.
func NewWSClient(url string, streams []string, readTimeout time.Duration, logger *zap.Logger) *WSClient {
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}
	return &WSClient{
		url:         url,
		streams:     streams,
		readTimeout: readTimeout,
		logger:      logger.Named("ws"),
	}
}

// SetMessageHandler sets the function to handle incoming messages.
func (c *WSClient) SetMessageHandler(h func([]byte)) {
	c.handler = h
}

// Connected reports whether a live connection is held.
func (c *WSClient) Connected() bool {
	return c.connected.Load()
}

// Connect dials the server and subscribes to the configured streams. It does
// not start the listener.
func (c *WSClient) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.logger.Error("failed to connect to WebSocket", zap.String("url", c.url), zap.Error(err))
		return err
	}

	if len(c.streams) > 0 {
		subMsg := map[string]interface{}{
			"method": "SUBSCRIBE",
			"params": c.streams,
			"id":     c.nextID.Add(1),
		}
		if err := conn.WriteJSON(subMsg); err != nil {
			_ = conn.Close()
			return fmt.Errorf("websocket subscribe failed: %w", err)
		}
	}

	conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	})
	// Binance pings every few minutes; answering keeps the session alive
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(true)

	c.logger.Info("WebSocket connected", zap.String("url", c.url), zap.Strings("streams", c.streams))
	return nil
}

// Listen reads messages until ctx is cancelled, reconnecting with exponential
// backoff whenever the connection drops.
func (c *WSClient) Listen(ctx context.Context) {
	defer c.Close()

	go c.keepAlive(ctx)

	for {
		if ctx.Err() != nil {
			return
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			if !c.reconnect(ctx) {
				return
			}
			continue
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.connected.Store(false)
			c.logger.Warn("WebSocket read error", zap.Error(err))
			if !c.reconnect(ctx) {
				return
			}
			continue
		}
		conn.SetReadDeadline(time.Now().Add(c.readTimeout))

		if c.handler != nil {
			c.handler(msg)
		}
	}
}

// reconnect retries Connect until it succeeds or ctx ends.
func (c *WSClient) reconnect(ctx context.Context) bool {
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}

		if err := c.Connect(ctx); err != nil {
			c.logger.Warn("retrying reconnect", zap.Duration("backoff", backoff), zap.Error(err))
			backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
			continue
		}
		c.logger.Info("reconnected successfully")
		return true
	}
}

func (c *WSClient) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.Close() // unblocks a pending read
			return
		case <-ticker.C:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			if conn == nil {
				continue
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				c.logger.Debug("ping failed", zap.Error(err))
			}
		}
	}
}

// Close drops the current connection.
func (c *WSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connected.Store(false)
}
