package utils

import (
	"testing"
	"time"
)

// TestTradingDate_LateEveningUTCIsPreviousDay. 02:00 UTC on a Tuesday is still Monday evening in New York, so the
// bar belongs to Monday.
func TestTradingDate_LateEveningUTCIsPreviousDay(t *testing.T) {
	now := time.Date(2025, 7, 15, 2, 0, 0, 0, time.UTC)
	expected := time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)

	if got := TradingDate(now); !got.Equal(expected) {
		t.Errorf("Expected %v but got %v", expected, got)
	}
}

// TestTradingDate_MarketOpenIsSameDay. A Polygon daily bar timestamp (04:00 UTC, midnight ET in summer) maps to the
// same calendar date.
func TestTradingDate_MarketOpenIsSameDay(t *testing.T) {
	ts := time.Date(2025, 7, 11, 4, 0, 0, 0, time.UTC)
	expected := time.Date(2025, 7, 11, 0, 0, 0, 0, time.UTC)

	if got := TradingDate(ts); !got.Equal(expected) {
		t.Errorf("Expected %v but got %v", expected, got)
	}
}

// TestTrailingWindow_FiveYears. The window ends on today's date and starts on the same date five years earlier.
func TestTrailingWindow_FiveYears(t *testing.T) {
	now := time.Date(2025, 7, 13, 15, 30, 0, 0, time.UTC)
	from, to := TrailingWindow(now, 5)

	if want := time.Date(2025, 7, 13, 0, 0, 0, 0, time.UTC); !to.Equal(want) {
		t.Errorf("Expected end %v but got %v", want, to)
	}
	if want := time.Date(2020, 7, 13, 0, 0, 0, 0, time.UTC); !from.Equal(want) {
		t.Errorf("Expected start %v but got %v", want, from)
	}
}

func TestIsWeekend(t *testing.T) {
	sat := time.Date(2025, 7, 12, 0, 0, 0, 0, time.UTC)
	mon := time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)

	if !IsWeekend(sat) || !IsWeekend(sat.AddDate(0, 0, 1)) {
		t.Errorf("Expected %v and the following day to be weekend days", sat)
	}
	if IsWeekend(mon) {
		t.Errorf("Expected %v to be a weekday", mon)
	}
}
