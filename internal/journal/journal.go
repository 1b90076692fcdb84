// Package journal keeps a record of every alert that was dispatched.
package journal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind of alert.
const (
	KindSignal      = "signal"
	KindLiquidation = "liquidation"
	KindReport      = "report"
)

// Entry is one dispatched alert.
type Entry struct {
	AlertID    uuid.UUID `json:"alert_id"`
	Key        string    `json:"key"` // idempotency key, unique per alert
	Kind       string    `json:"kind"`
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	StopLoss   float64   `json:"stop_loss,omitempty"`
	TakeProfit []float64 `json:"take_profit,omitempty"`
	Notional   float64   `json:"notional,omitempty"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewEntry fills in a fresh alert id and timestamp.
func NewEntry(kind, key, symbol string, price float64, message string) Entry {
	return Entry{
		AlertID:   uuid.New(),
		Key:       key,
		Kind:      kind,
		Symbol:    symbol,
		Price:     price,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}

// Journal stores entries.
type Journal interface {
	SaveAlert(ctx context.Context, e Entry) error
}

// Memory keeps the most recent entries in process.
type Memory struct {
	mu      sync.Mutex
	limit   int
	entries []Entry
}

func NewMemory(limit int) *Memory {
	if limit < 1 {
		limit = 1
	}
	return &Memory{limit: limit, entries: make([]Entry, 0, limit)}
}

func (m *Memory) SaveAlert(ctx context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == m.limit {
		copy(m.entries, m.entries[1:])
		m.entries = m.entries[:len(m.entries)-1]
	}
	m.entries = append(m.entries, e)
	return nil
}

// Recent returns entries newest first.
func (m *Memory) Recent() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Copy to avoid race
	out := make([]Entry, len(m.entries))
	for i, e := range m.entries {
		out[len(out)-1-i] = e
	}
	return out
}

// Tee writes every entry to all journals and joins their errors.
type Tee []Journal

func (t Tee) SaveAlert(ctx context.Context, e Entry) error {
	var errs []error
	for _, j := range t {
		if err := j.SaveAlert(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
