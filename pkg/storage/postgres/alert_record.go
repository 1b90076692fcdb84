package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// AlertRecord is one dispatched alert stored in the database.
type AlertRecord struct {
	ID uint `gorm:"primaryKey"`

	AlertID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_alert_id"`
	AlertKey string    `gorm:"type:text;not null;uniqueIndex:idx_alert_key"`

	Kind   string `gorm:"type:varchar(16);not null;index:idx_alert_kind"`
	Symbol string `gorm:"type:text;not null;index:idx_alert_symbol"`

	Price      float64         `gorm:"type:numeric;not null"`
	StopLoss   float64         `gorm:"type:numeric"`
	TakeProfit pq.Float64Array `gorm:"type:numeric[]"`
	Notional   float64         `gorm:"type:numeric"`

	Message string `gorm:"type:text;not null"`

	CreatedAt time.Time `gorm:"not null;index:idx_alert_created_at"`
}

// TableName overrides the default table name for GORM.
func (AlertRecord) TableName() string {
	return "alert_record"
}
