package ohlcv

import (
	"fmt"
	"time"

	"stock-ingest/utils"
)

// Range is an inclusive window of calendar dates. Both bounds are dates at midnight UTC.
type Range struct {
	From time.Time
	To   time.Time
}

// NewRange builds an explicit range, rejecting one that ends before it starts.
func NewRange(from, to time.Time) (Range, error) {
	r := Range{From: Date(from), To: Date(to)}
	if r.To.Before(r.From) {
		return Range{}, fmt.Errorf("range end %s is before start %s", r.To.Format(time.DateOnly), r.From.Format(time.DateOnly))
	}
	return r, nil
}

// TrailingYears is the window of `n` years ending on today's Eastern Time date.
func TrailingYears(now time.Time, n int) Range {
	from, to := utils.TrailingWindow(now, n)
	return Range{From: from, To: to}
}

// Contains reports whether the calendar date of `t` lies within the range, bounds included.
func (r Range) Contains(t time.Time) bool {
	d := Date(t)
	return !d.Before(r.From) && !d.After(r.To)
}

// Days returns the number of calendar days covered by the range.
func (r Range) Days() int {
	return int(r.To.Sub(r.From).Hours()/24) + 1
}

func (r Range) String() string {
	return r.From.Format(time.DateOnly) + ".." + r.To.Format(time.DateOnly)
}
