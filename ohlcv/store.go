package ohlcv

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	stagingTable = "stock_data_staging"

	createStagingSQL = `CREATE TEMP TABLE stock_data_staging (LIKE stock_data INCLUDING DEFAULTS) ON COMMIT DROP`

	// Rows already present keep their first-seen values.
	insertFromStagingSQL = `
		INSERT INTO stock_data ("time", ticker, price, volume)
		SELECT "time", ticker, price, volume FROM stock_data_staging
		ORDER BY "time"
		ON CONFLICT ("time", ticker) DO NOTHING`

	latestSQL = `
		SELECT "time", ticker, price, volume FROM stock_data
		WHERE ticker = $1
		ORDER BY "time" DESC
		LIMIT 1`
)

var stockDataColumns = []string{"time", "ticker", "price", "volume"}

// PostgresStore writes observations to the stock_data table over a single connection.
type PostgresStore struct {
	db *pgx.Conn
}

func NewPostgresStore(db *pgx.Conn) *PostgresStore {
	return &PostgresStore{db: db}
}

// Insert streams the observations into a transaction-scoped staging table and moves them into stock_data, ignoring
// keys that already exist. The staging table and every inserted row share one transaction, so a failure at any point
// leaves stock_data untouched.
func (s *PostgresStore) Insert(ctx context.Context, obs Observations) (int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "begin transaction")
	}
	// Rollback is a no-op once the transaction is committed.
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, createStagingSQL); err != nil {
		return 0, pkgerrors.Wrap(err, "create staging table")
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{stagingTable}, stockDataColumns, &copySource{obs: obs}); err != nil {
		return 0, pkgerrors.Wrap(err, "copy observations")
	}

	tag, err := tx.Exec(ctx, insertFromStagingSQL)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "insert observations")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, pkgerrors.Wrap(err, "commit")
	}

	return tag.RowsAffected(), nil
}

// Latest returns the most recent stored observation for the ticker. The boolean is false when the ticker has no rows.
func (s *PostgresStore) Latest(ctx context.Context, ticker string) (PriceObservation, bool, error) {
	var (
		o     PriceObservation
		price pgtype.Numeric
	)
	err := s.db.QueryRow(ctx, latestSQL, ticker).Scan(&o.Time, &o.Ticker, &price, &o.Volume)
	if errors.Is(err, pgx.ErrNoRows) {
		return PriceObservation{}, false, nil
	}
	if err != nil {
		return PriceObservation{}, false, pkgerrors.Wrap(err, "query latest observation")
	}

	o.Price = fromNumeric(price)
	return o, true, nil
}

// copySource adapts Observations to pgx.CopyFromSource.
type copySource struct {
	obs Observations
}

func (c *copySource) Next() bool {
	return c.obs.Next()
}

// Values returns the observation in the order of stockDataColumns.
func (c *copySource) Values() ([]any, error) {
	o := c.obs.Observation()
	return []any{o.Time, o.Ticker, toNumeric(o.Price), o.Volume}, nil
}

func (c *copySource) Err() error {
	return c.obs.Err()
}

func toNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func fromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
