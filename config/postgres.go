package config

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// PostgresConfig defines the configuration for the alert journal database.
type PostgresConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`

	// SSM parameter names resolved in prod
	HostParam     string `mapstructure:"host_param"`
	UserParam     string `mapstructure:"user_param"`
	PasswordParam string `mapstructure:"password_param"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN builds a lib/pq style connection string for the configured database.
func (cfg *PostgresConfig) DSN() string {
	return cfg.dsnFor(cfg.DBName)
}

// AdminDSN connects to the server's default "postgres" database.
func (cfg *PostgresConfig) AdminDSN() string {
	return cfg.dsnFor("postgres")
}

func (cfg *PostgresConfig) dsnFor(dbName string) string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, dbName, cfg.SSLMode,
	)

	if cfg.TimeZone != "" {
		dsn += fmt.Sprintf(" TimeZone=%s", cfg.TimeZone)
	}

	return dsn
}

// ParameterFetcher reads a single SSM parameter value.
type ParameterFetcher func(ctx context.Context, name string, decrypt bool) (string, error)

// ResolveSecrets fills credentials from AWS SSM Parameter Store when running in
// prod. Values already present in the config are kept.
func (c *Config) ResolveSecrets(ctx context.Context, fetch ParameterFetcher) error {
	if c.Environment != "prod" {
		return nil
	}
	if fetch == nil {
		fetch = GetParameterStoreValue
	}

	resolve := func(dst *string, param string) error {
		if *dst != "" || param == "" {
			return nil
		}
		val, err := fetch(ctx, param, true)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", param, err)
		}
		*dst = val
		return nil
	}

	if err := resolve(&c.Telegram.BotToken, c.Telegram.BotTokenParam); err != nil {
		return err
	}
	if !c.Postgres.Enabled {
		return nil
	}
	if err := resolve(&c.Postgres.Host, c.Postgres.HostParam); err != nil {
		return err
	}
	if err := resolve(&c.Postgres.User, c.Postgres.UserParam); err != nil {
		return err
	}
	return resolve(&c.Postgres.Password, c.Postgres.PasswordParam)
}

// GetParameterStoreValue reads a parameter from AWS SSM using the default
// credential chain.
func GetParameterStoreValue(ctx context.Context, parameterName string, decrypt bool) (string, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cfg, err := config.LoadDefaultConfig(ctxWithTimeout)
	if err != nil {
		return "", fmt.Errorf("load aws config: %w", err)
	}

	client := ssm.NewFromConfig(cfg)

	input := &ssm.GetParameterInput{
		Name:           &parameterName,
		WithDecryption: &decrypt,
	}

	result, err := client.GetParameter(ctxWithTimeout, input)
	if err != nil {
		return "", fmt.Errorf("get parameter: %w", err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %s has no value", parameterName)
	}

	return *result.Parameter.Value, nil
}
