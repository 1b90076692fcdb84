package postgres_test

import (
	"os"
	"testing"

	"oiwatch/config"
	"oiwatch/pkg/storage/postgres"
)

// go test -v --run TestCreateDatabase
func TestCreateDatabase(t *testing.T) {
	if os.Getenv("OIWATCH_TEST_POSTGRES_DSN") == "" {
		t.Skip("OIWATCH_TEST_POSTGRES_DSN not set")
	}
	cfg := config.PostgresConfig{
		Host:     os.Getenv("OIWATCH_TEST_POSTGRES_HOST"),
		Port:     5432,
		User:     os.Getenv("OIWATCH_TEST_POSTGRES_USER"),
		Password: os.Getenv("OIWATCH_TEST_POSTGRES_PASSWORD"),
		DBName:   "oiwatch_test_create",
		SSLMode:  "disable",
	}
	if cfg.Host == "" {
		t.Skip("OIWATCH_TEST_POSTGRES_HOST not set")
	}

	if err := postgres.CreateDatabase(cfg); err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	// Second call must see the existing database
	if err := postgres.CreateDatabase(cfg); err != nil {
		t.Fatalf("expected idempotent create, got %v", err)
	}
}
