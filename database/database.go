package database

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"github.com/jackc/pgx/v5"

	"stock-ingest/config"
)

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS stock_data (
		"time" DATE NOT NULL,
		ticker TEXT NOT NULL,
		price NUMERIC NOT NULL CHECK (price >= 0),
		volume BIGINT NOT NULL CHECK (volume >= 0),
		PRIMARY KEY ("time", ticker)
	)`

const hypertableSQL = `SELECT create_hypertable('stock_data', 'time', if_not_exists => TRUE, migrate_data => TRUE)`

// ConnString builds the PostgreSQL URL for the config. Empty values are passed through, so a missing setting is
// reported by the driver when connecting.
func ConnString(cfg config.DBConfig) string {
	host := cfg.Host
	if cfg.Port != "" {
		host = net.JoinHostPort(cfg.Host, cfg.Port)
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     host,
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": []string{sslMode}}.Encode(),
	}
	return u.String()
}

// New opens the single connection an ingestion run uses. The caller owns it and must close it.
func New(ctx context.Context, cfg config.DBConfig) (*pgx.Conn, error) {
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	conn, err := pgx.Connect(ctx, ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	return conn, nil
}

// Migrate creates the stock_data table if it does not exist. With hypertable set, the table is also converted into a
// TimescaleDB hypertable partitioned on time, which requires the timescaledb extension.
func Migrate(ctx context.Context, conn *pgx.Conn, hypertable bool) error {
	if _, err := conn.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("error creating stock_data table: %w", err)
	}

	if !hypertable {
		return nil
	}

	if _, err := conn.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS timescaledb`); err != nil {
		return fmt.Errorf("error enabling timescaledb: %w", err)
	}
	if _, err := conn.Exec(ctx, hypertableSQL); err != nil {
		return fmt.Errorf("error creating stock_data hypertable: %w", err)
	}

	return nil
}
