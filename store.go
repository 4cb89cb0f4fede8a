package main

import (
	"context"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"stock-ingest/config"
	"stock-ingest/database"
	"stock-ingest/ohlcv"
)

// lazyStore connects on the first Insert, so a run whose fetch fails never needs the database.
type lazyStore struct {
	cfg     config.DBConfig
	migrate bool
	log     *zap.Logger

	conn  *pgx.Conn
	store *ohlcv.PostgresStore
}

func (s *lazyStore) Insert(ctx context.Context, obs ohlcv.Observations) (int64, error) {
	if err := s.open(ctx); err != nil {
		return 0, err
	}
	return s.store.Insert(ctx, obs)
}

// Latest is false until a connection has been made.
func (s *lazyStore) Latest(ctx context.Context, ticker string) (ohlcv.PriceObservation, bool, error) {
	if s.store == nil {
		return ohlcv.PriceObservation{}, false, nil
	}
	return s.store.Latest(ctx, ticker)
}

func (s *lazyStore) open(ctx context.Context) error {
	if s.store != nil {
		return nil
	}

	conn, err := database.New(ctx, s.cfg)
	if err != nil {
		return err
	}
	if s.migrate {
		if err := database.Migrate(ctx, conn, s.cfg.Hypertable); err != nil {
			_ = conn.Close(ctx)
			return err
		}
		s.log.Info("stock_data migrated", zap.Bool("hypertable", s.cfg.Hypertable))
	}

	s.conn, s.store = conn, ohlcv.NewPostgresStore(conn)
	return nil
}

func (s *lazyStore) Close(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close(ctx)
}
