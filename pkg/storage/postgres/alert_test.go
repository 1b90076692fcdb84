package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"oiwatch/internal/journal"
	"oiwatch/pkg/storage/postgres"

	"github.com/google/uuid"
)

// go test -v --run TestToAlertRecord
func TestToAlertRecord(t *testing.T) {
	e := journal.NewEntry(journal.KindSignal, "sig|XUSDT|1", "XUSDT", 100, "msg")
	e.StopLoss = 98
	e.TakeProfit = []float64{104, 104, 104}

	r := postgres.ToAlertRecord(e)
	if r.AlertID != e.AlertID || r.AlertKey != e.Key || r.Kind != journal.KindSignal {
		t.Errorf("identity fields not copied: %+v", r)
	}
	if r.StopLoss != 98 || len(r.TakeProfit) != 3 || r.TakeProfit[0] != 104 {
		t.Errorf("risk fields not copied: %+v", r)
	}
	if r.TableName() != "alert_record" {
		t.Errorf("unexpected table name %s", r.TableName())
	}
}

// go test -v --run TestAlertCRUD
func TestAlertCRUD(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	key := "test|" + uuid.NewString()
	e := journal.NewEntry(journal.KindLiquidation, key, "TESTUSDT", 50000, "💥 test")
	e.Notional = 750000

	// Create
	if err := client.InsertAlert(ctx, postgres.ToAlertRecord(e)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	// Duplicate key
	dup := postgres.ToAlertRecord(e)
	dup.AlertID = uuid.New()
	if err := client.InsertAlert(ctx, dup); !errors.Is(err, postgres.ErrDuplicateAlert) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if err := client.SaveAlert(ctx, e); err != nil {
		t.Fatalf("SaveAlert must ignore duplicates, got %v", err)
	}

	// Read
	records, err := client.ListAlerts(ctx, "TESTUSDT", 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	found := false
	for _, r := range records {
		if r.AlertKey == key {
			found = true
		}
	}
	if !found {
		t.Fatal("inserted alert not listed")
	}

	// Delete
	if _, err := client.DeleteOldAlerts(ctx, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
}
