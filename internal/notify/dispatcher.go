// Package notify delivers rendered alerts to chat destinations off the
// evaluation path.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"oiwatch/internal/instrumentation"

	"go.uber.org/zap"
)

// Sender posts one message to one chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// ChatResolver returns the destinations for the next delivery.
type ChatResolver interface {
	Chats(ctx context.Context) ([]int64, error)
}

// StaticChats is a fixed destination list.
type StaticChats []int64

func (s StaticChats) Chats(context.Context) ([]int64, error) {
	return s, nil
}

// Discoverer finds chat IDs at runtime (e.g. from bot updates).
type Discoverer interface {
	DiscoverChatIDs(ctx context.Context) ([]int64, error)
}

// DiscoveredChats caches discovered chat IDs for ttl. A failed discovery falls
// back to the last known list.
type DiscoveredChats struct {
	src Discoverer
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	ids     []int64
	fetched time.Time
}

func NewDiscoveredChats(src Discoverer, ttl time.Duration) *DiscoveredChats {
	return &DiscoveredChats{src: src, ttl: ttl, now: time.Now}
}

func (d *DiscoveredChats) Chats(ctx context.Context) ([]int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.fetched.IsZero() && d.now().Sub(d.fetched) < d.ttl {
		return d.ids, nil
	}
	ids, err := d.src.DiscoverChatIDs(ctx)
	if err != nil {
		if d.ids != nil {
			return d.ids, nil
		}
		return nil, fmt.Errorf("discover chats: %w", err)
	}
	d.ids, d.fetched = ids, d.now()
	return ids, nil
}

// Message is one queued alert.
type Message struct {
	Kind   string // signal, liquidation or report
	Symbol string
	Text   string
}

// Dispatcher queues messages and delivers them from a single worker so that
// producers never wait on the network.
type Dispatcher struct {
	sender  Sender
	chats   ChatResolver
	queue   chan Message
	timeout time.Duration
	logger  *zap.Logger
	metrics *instrumentation.Metrics
}

func NewDispatcher(sender Sender, chats ChatResolver, size int, timeout time.Duration,
	logger *zap.Logger, metrics *instrumentation.Metrics) *Dispatcher {
	if size < 1 {
		size = 1
	}
	return &Dispatcher{
		sender:  sender,
		chats:   chats,
		queue:   make(chan Message, size),
		timeout: timeout,
		logger:  logger.Named("notify"),
		metrics: metrics,
	}
}

// Enqueue hands msg to the worker. It returns false without blocking when the
// queue is full.
func (d *Dispatcher) Enqueue(msg Message) bool {
	select {
	case d.queue <- msg:
		return true
	default:
		d.metrics.RecordDelivery("dropped")
		d.logger.Warn("alert queue full, dropping message",
			zap.String("kind", msg.Kind), zap.String("symbol", msg.Symbol))
		return false
	}
}

// Run delivers queued messages until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-d.queue:
			d.Deliver(ctx, msg)
		}
	}
}

// Deliver sends msg to every destination and returns the outcome per chat.
func (d *Dispatcher) Deliver(ctx context.Context, msg Message) map[int64]error {
	chats, err := d.chats.Chats(ctx)
	if err != nil {
		d.metrics.RecordDelivery("no_destination")
		d.logger.Error("no chat destinations", zap.Error(err))
		return nil
	}
	if len(chats) == 0 {
		d.metrics.RecordDelivery("no_destination")
		d.logger.Warn("no chat destinations found", zap.String("kind", msg.Kind))
		return nil
	}

	results := make(map[int64]error, len(chats))
	for _, id := range chats {
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := d.sender.SendMessage(sendCtx, id, msg.Text)
		cancel()

		results[id] = err
		if err != nil {
			d.metrics.RecordDelivery("failed")
			d.logger.Warn("failed to deliver alert", zap.Int64("chat_id", id),
				zap.String("symbol", msg.Symbol), zap.Error(err))
			continue
		}
		d.metrics.RecordDelivery("sent")
		d.logger.Info("alert delivered", zap.Int64("chat_id", id),
			zap.String("kind", msg.Kind), zap.String("symbol", msg.Symbol))
	}
	return results
}
