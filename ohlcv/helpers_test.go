package ohlcv

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

type obsKey struct {
	time   time.Time
	ticker string
}

// memStore is an in-memory Store with the same all-or-nothing and first-seen-wins behaviour as PostgresStore.
type memStore struct {
	mu        sync.Mutex
	rows      map[obsKey]PriceObservation
	calls     int
	failAfter int // fail while staging the n-th observation of a call, 0 never fails
}

func newMemStore() *memStore {
	return &memStore{rows: map[obsKey]PriceObservation{}}
}

func (s *memStore) Insert(_ context.Context, obs Observations) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	var staged []PriceObservation
	for obs.Next() {
		staged = append(staged, obs.Observation())
		if s.failAfter > 0 && len(staged) == s.failAfter {
			return 0, errors.New("connection reset by peer")
		}
	}
	if err := obs.Err(); err != nil {
		return 0, err
	}

	var inserted int64
	for _, o := range staged {
		k := obsKey{o.Time, o.Ticker}
		if _, ok := s.rows[k]; ok {
			continue
		}
		s.rows[k] = o
		inserted++
	}
	return inserted, nil
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *memStore) has(t time.Time, ticker string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rows[obsKey{t, ticker}]
	return ok
}

// mockSource returns fresh rows on every Fetch: the first return value may be a []Row or a Rows.
type mockSource struct {
	mock.Mock
}

func (m *mockSource) Validate(ctx context.Context, ticker string) error {
	return m.Called(ctx, ticker).Error(0)
}

func (m *mockSource) Fetch(ctx context.Context, ticker string, r Range) (Rows, error) {
	args := m.Called(ctx, ticker, r)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	switch v := args.Get(0).(type) {
	case []Row:
		return NewSliceRows(append([]Row(nil), v...)), nil
	case Rows:
		return v, nil
	}
	return nil, errors.New("mockSource: unsupported rows")
}

// failingRows yields its rows and then fails as a dropped connection would.
type failingRows struct {
	*SliceRows
	err error
}

func (f *failingRows) Err() error {
	if f.SliceRows.i >= len(f.SliceRows.rows) {
		return f.err
	}
	return nil
}

// weekdayRows returns n complete rows on consecutive weekdays starting at `from`.
func weekdayRows(from time.Time, n int) []Row {
	rows := make([]Row, 0, n)
	for d := Date(from); len(rows) < n; d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		c := 100 + float64(len(rows))/4
		rows = append(rows, Row{Time: d, Open: c - 1, High: c + 1, Low: c - 2, Close: c, Volume: 1_000_000 + float64(len(rows))})
	}
	return rows
}

var nan = math.NaN()
