package ohlcv

import (
	"context"
)

// Source is a market-data provider adapter.
type Source interface {
	// Validate checks that the provider knows the ticker. It returns ErrInvalidTicker when the provider has no
	// metadata for it.
	Validate(ctx context.Context, ticker string) error

	// Fetch returns the daily bars for the ticker within the range, oldest first. It returns ErrNoData when the
	// series is empty. Rows are produced lazily, so transport errors may also surface later through Rows.Err.
	Fetch(ctx context.Context, ticker string, r Range) (Rows, error)
}

// Rows is a lazy, finite sequence of rows ordered by ascending date.
type Rows interface {
	Next() bool
	Row() Row
	Err() error
	Close() error
}

// NonEmpty reads ahead one row so that an empty series is reported as ErrNoData before any work is done with it.
// The returned Rows still yields the row that was read ahead.
func NonEmpty(rows Rows) (Rows, error) {
	if rows.Next() {
		return &peekedRows{Rows: rows, first: rows.Row(), pending: true}, nil
	}

	err := rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, err
	}
	return nil, ErrNoData
}

type peekedRows struct {
	Rows
	first   Row
	pending bool
	started bool
}

func (p *peekedRows) Next() bool {
	if p.pending && !p.started {
		p.started = true
		return true
	}
	p.pending = false
	return p.Rows.Next()
}

func (p *peekedRows) Row() Row {
	if p.pending {
		return p.first
	}
	return p.Rows.Row()
}

// SliceRows serves rows that are already in memory.
type SliceRows struct {
	rows []Row
	i    int
}

func NewSliceRows(rows []Row) *SliceRows {
	return &SliceRows{rows: rows, i: -1}
}

func (s *SliceRows) Next() bool {
	if s.i+1 >= len(s.rows) {
		s.i = len(s.rows)
		return false
	}
	s.i++
	return true
}

func (s *SliceRows) Row() Row     { return s.rows[s.i] }
func (s *SliceRows) Err() error   { return nil }
func (s *SliceRows) Close() error { return nil }
