package ohlcv

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNonEmpty_ReplaysFirstRow checks that reading ahead does not lose the first row.
func TestNonEmpty_ReplaysFirstRow(t *testing.T) {
	rows := weekdayRows(time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), 3)

	got, err := NonEmpty(NewSliceRows(rows))
	require.NoError(t, err)

	var seen []Row
	for got.Next() {
		seen = append(seen, got.Row())
	}
	assert.Equal(t, rows, seen)
	assert.NoError(t, got.Err())
}

func TestNonEmpty_EmptyIsNoData(t *testing.T) {
	_, err := NonEmpty(NewSliceRows(nil))
	assert.ErrorIs(t, err, ErrNoData)
}

// TestNonEmpty_ReportsSourceError ensures a failure while reading ahead is not mistaken for an empty series.
func TestNonEmpty_ReportsSourceError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NonEmpty(&failingRows{SliceRows: NewSliceRows(nil), err: boom})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNoData)
}
