package ohlcv

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		row    Row
		ok     bool
		price  string
		volume int64
	}{
		{name: "complete", row: Row{Time: day, Close: 187.25, Volume: 51234567}, ok: true, price: "187.25", volume: 51234567},
		{name: "fractional volume truncates", row: Row{Time: day, Close: 10, Volume: 99.9}, ok: true, price: "10", volume: 99},
		{name: "zero volume is kept", row: Row{Time: day, Close: 10, Volume: 0}, ok: true, price: "10", volume: 0},
		{name: "missing close", row: Row{Time: day, Close: math.NaN(), Volume: 1}},
		{name: "missing volume", row: Row{Time: day, Close: 1, Volume: math.NaN()}},
		{name: "infinite close", row: Row{Time: day, Close: math.Inf(1), Volume: 1}},
		{name: "negative volume", row: Row{Time: day, Close: 1, Volume: -5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize("AAPL", tt.row)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, "AAPL", got.Ticker)
			assert.True(t, got.Price.Equal(decimal.RequireFromString(tt.price)), "price %s", got.Price)
			assert.Equal(t, tt.volume, got.Volume)
			assert.Equal(t, day, got.Time)
		})
	}
}

// TestNormalize_StripsClock ensures a bar stamped with a time of day is keyed by its date alone.
func TestNormalize_StripsClock(t *testing.T) {
	got, ok := Normalize("AAPL", Row{Time: time.Date(2025, 3, 3, 13, 30, 0, 0, time.UTC), Close: 1, Volume: 1})
	assert.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), got.Time)
}
