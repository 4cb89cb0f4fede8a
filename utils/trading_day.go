package utils

import (
	"time"
)

var newYork = mustLoadLocation("America/New_York")

// TradingDate returns the calendar date that `t` falls on in Eastern Time, as midnight UTC. Daily bars are keyed by
// this date regardless of the timezone the provider reports them in.
func TradingDate(t time.Time) time.Time {
	et := t.In(newYork)
	return time.Date(et.Year(), et.Month(), et.Day(), 0, 0, 0, 0, time.UTC)
}

// TrailingWindow returns the first and last dates of a window of `years` years ending on today's Eastern Time date.
func TrailingWindow(now time.Time, years int) (time.Time, time.Time) {
	to := TradingDate(now)
	return to.AddDate(-years, 0, 0), to
}

// IsWeekend reports whether the date falls on a Saturday or Sunday, on which no daily bar is published.
func IsWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}
