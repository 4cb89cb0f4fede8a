package ohlcv

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Row is one daily bar as reported by a provider. A field the provider had no value for is NaN.
type Row struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PriceObservation is the stored unit: one day's closing price and volume for a ticker. Only fully populated
// observations are ever built.
type PriceObservation struct {
	Time   time.Time
	Ticker string
	Price  decimal.Decimal
	Volume int64
}

// Normalize turns a provider row into an observation. It returns false when the close or the volume is missing or
// not a meaningful quantity, in which case the row must be dropped rather than stored partially.
func Normalize(ticker string, r Row) (PriceObservation, bool) {
	if !usable(r.Close) || !usable(r.Volume) {
		return PriceObservation{}, false
	}

	return PriceObservation{
		Time:   Date(r.Time),
		Ticker: ticker,
		Price:  decimal.NewFromFloat(r.Close),
		Volume: int64(r.Volume),
	}, true
}

// Date strips the clock from `t`, keeping the calendar date it carries in its own location.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func usable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
