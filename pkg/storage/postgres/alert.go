package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"oiwatch/internal/journal"

	"github.com/lib/pq"
	"gorm.io/gorm/clause"
)

// ErrDuplicateAlert is returned when an alert with the same key is already stored.
var ErrDuplicateAlert = errors.New("duplicate alert")

func (p *PostgresClient) InsertAlert(ctx context.Context, record *AlertRecord) error {
	tx := p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "alert_key"}},
		DoNothing: true,
	}).Create(record)

	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return fmt.Errorf("%w: key=%s symbol=%s", ErrDuplicateAlert, record.AlertKey, record.Symbol)
	}

	return nil
}

// SaveAlert implements journal.Journal. Duplicates are ignored.
func (p *PostgresClient) SaveAlert(ctx context.Context, e journal.Entry) error {
	err := p.InsertAlert(ctx, ToAlertRecord(e))
	if errors.Is(err, ErrDuplicateAlert) {
		return nil
	}
	return err
}

// ListAlerts returns the newest alerts first, optionally for one symbol.
func (p *PostgresClient) ListAlerts(ctx context.Context, symbol string, limit int) ([]AlertRecord, error) {
	q := p.DB.WithContext(ctx).Order("created_at DESC")
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var records []AlertRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (p *PostgresClient) DeleteOldAlerts(ctx context.Context, before time.Time) (int64, error) {
	tx := p.DB.WithContext(ctx).
		Where("created_at < ?", before).
		Delete(&AlertRecord{})
	return tx.RowsAffected, tx.Error
}

// ToAlertRecord converts a journal entry into an AlertRecord for DB insertion.
func ToAlertRecord(e journal.Entry) *AlertRecord {
	return &AlertRecord{
		AlertID:    e.AlertID,
		AlertKey:   e.Key,
		Kind:       e.Kind,
		Symbol:     e.Symbol,
		Price:      e.Price,
		StopLoss:   e.StopLoss,
		TakeProfit: pq.Float64Array(e.TakeProfit),
		Notional:   e.Notional,
		Message:    e.Message,
		CreatedAt:  e.CreatedAt,
	}
}
