package providers

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"stock-ingest/ohlcv"
)

func newTestYahoo(t *testing.T, h http.HandlerFunc) *Yahoo {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewYahoo(srv.URL, zaptest.NewLogger(t))
}

const yahooTwoDays = `{"chart":{"result":[{
	"meta":{"symbol":"AAPL","currency":"USD","instrumentType":"EQUITY","exchangeTimezoneName":"America/New_York"},
	"timestamp":[1736173800,1736260200],
	"indicators":{"quote":[{
		"open":[244.31,242.98],"high":[247.33,245.55],"low":[243.20,241.35],
		"close":[245.00,242.21],"volume":[45045600,null]
	}]}}],"error":null}}`

// TestYahoo_FetchDailyBars checks session-open timestamps map to exchange dates and null values come out as NaN.
func TestYahoo_FetchDailyBars(t *testing.T) {
	y := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.Equal(t, "1736121600", r.URL.Query().Get("period1"))
		assert.Equal(t, "1736294400", r.URL.Query().Get("period2"))
		writeJSON(w, http.StatusOK, yahooTwoDays)
	})

	r, err := ohlcv.NewRange(time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	rows, err := y.Fetch(context.Background(), "AAPL", r)
	require.NoError(t, err)

	var got []ohlcv.Row
	for rows.Next() {
		got = append(got, rows.Row())
	}
	require.Len(t, got, 2)

	assert.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), got[0].Time)
	assert.Equal(t, 245.00, got[0].Close)
	assert.Equal(t, float64(45045600), got[0].Volume)
	assert.Equal(t, time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC), got[1].Time)
	assert.True(t, math.IsNaN(got[1].Volume))
}

func TestYahoo_ValidateKnownTicker(t *testing.T) {
	y := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1d", r.URL.Query().Get("range"))
		writeJSON(w, http.StatusOK, yahooTwoDays)
	})

	assert.NoError(t, y.Validate(context.Background(), "AAPL"))
}

// TestYahoo_ValidateUnknownTicker checks Yahoo's Not Found chart error is reported as an invalid ticker.
func TestYahoo_ValidateUnknownTicker(t *testing.T) {
	y := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound,
			`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)
	})

	assert.ErrorIs(t, y.Validate(context.Background(), "ZZZZINVALID"), ohlcv.ErrInvalidTicker)
}

// TestYahoo_ServerErrorIsNotInvalidTicker checks provider outages are kept apart from unknown symbols.
func TestYahoo_ServerErrorIsNotInvalidTicker(t *testing.T) {
	y := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	err := y.Validate(context.Background(), "AAPL")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ohlcv.ErrInvalidTicker)
}

func TestYahoo_FetchEmptyIsNoData(t *testing.T) {
	y := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK,
			`{"chart":{"result":[{"meta":{"symbol":"AAPL","exchangeTimezoneName":"America/New_York"},"indicators":{"quote":[{}]}}],"error":null}}`)
	})

	r, err := ohlcv.NewRange(time.Date(1975, 1, 6, 0, 0, 0, 0, time.UTC), time.Date(1975, 1, 7, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	_, err = y.Fetch(context.Background(), "AAPL", r)
	assert.ErrorIs(t, err, ohlcv.ErrNoData)
}
