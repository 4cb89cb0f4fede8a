package providers

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"stock-ingest/ohlcv"
	"stock-ingest/utils"
)

const yahooChartPath = "/v8/finance/chart/{ticker}"

// Yahoo fetches daily bars from the Yahoo Finance chart API. Days Yahoo has no value for are sent as JSON nulls and
// come out of Fetch as NaN.
type Yahoo struct {
	m      *ohlcv.Metrics
	log    *zap.Logger
	client *resty.Client
}

func NewYahoo(baseURL string, log *zap.Logger) *Yahoo {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		// The chart API rejects requests without a browser-like agent.
		SetHeader("User-Agent", "Mozilla/5.0 (compatible; stock-ingest)")
	c.JSONUnmarshal = json.Unmarshal

	return &Yahoo{log: log, client: c}
}

func (y *Yahoo) SetMetrics(m *ohlcv.Metrics) {
	y.m = m
}

type yahooChartResponse struct {
	Chart struct {
		Result []yahooChartResult `json:"result"`
		Error  *yahooChartError   `json:"error"`
	} `json:"chart"`
}

type yahooChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type yahooChartResult struct {
	Meta       yahooMeta `json:"meta"`
	Timestamp  []int64   `json:"timestamp"`
	Indicators struct {
		Quote []yahooQuote `json:"quote"`
	} `json:"indicators"`
}

type yahooMeta struct {
	Symbol               string `json:"symbol"`
	Currency             string `json:"currency"`
	InstrumentType       string `json:"instrumentType"`
	ExchangeTimezoneName string `json:"exchangeTimezoneName"`
}

// yahooQuote holds parallel arrays indexed like Timestamp. Pointers keep nulls apart from zeros.
type yahooQuote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}

// Validate asks for the last day of the chart, which carries the instrument's metadata.
func (y *Yahoo) Validate(ctx context.Context, ticker string) error {
	res, err := y.chart(ctx, ticker, map[string]string{"range": "1d", "interval": "1d"})
	if err != nil {
		return err
	}

	y.log.Debug("ticker validated",
		zap.String("ticker", ticker),
		zap.String("instrument_type", res.Meta.InstrumentType),
		zap.String("currency", res.Meta.Currency),
	)
	return nil
}

func (y *Yahoo) Fetch(ctx context.Context, ticker string, r ohlcv.Range) (ohlcv.Rows, error) {
	y.m.SetSource("yahoo")

	// period2 is exclusive.
	res, err := y.chart(ctx, ticker, map[string]string{
		"period1":  strconv.FormatInt(r.From.Unix(), 10),
		"period2":  strconv.FormatInt(r.To.AddDate(0, 0, 1).Unix(), 10),
		"interval": "1d",
		"events":   "history",
	})
	if err != nil {
		return nil, err
	}

	rows, err := ohlcv.NonEmpty(ohlcv.NewSliceRows(yahooRows(res)))
	if err != nil {
		return nil, fmt.Errorf("yahoo has no daily bars for %q in %s: %w", ticker, r, err)
	}
	return rows, nil
}

func (y *Yahoo) chart(ctx context.Context, ticker string, query map[string]string) (*yahooChartResult, error) {
	var body yahooChartResponse
	res, err := y.client.R().
		SetContext(ctx).
		SetPathParam("ticker", ticker).
		SetQueryParams(query).
		SetResult(&body).
		SetError(&body).
		Get(yahooChartPath)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "yahoo: chart request")
	}

	if e := body.Chart.Error; e != nil {
		if e.Code == "Not Found" {
			return nil, fmt.Errorf("yahoo: %s: %w", e.Description, ohlcv.ErrInvalidTicker)
		}
		return nil, pkgerrors.Errorf("yahoo: %s: %s", e.Code, e.Description)
	}
	if res.IsError() {
		return nil, pkgerrors.Errorf("yahoo: chart request returned %s", res.Status())
	}
	if len(body.Chart.Result) == 0 || body.Chart.Result[0].Meta.Symbol == "" {
		return nil, fmt.Errorf("yahoo returned no metadata for %q: %w", ticker, ohlcv.ErrInvalidTicker)
	}

	return &body.Chart.Result[0], nil
}

// yahooRows turns the chart's parallel arrays into rows. Timestamps mark the session open, so they are converted to
// dates in the exchange's own timezone.
func yahooRows(res *yahooChartResult) []ohlcv.Row {
	var q yahooQuote
	if len(res.Indicators.Quote) > 0 {
		q = res.Indicators.Quote[0]
	}

	var loc *time.Location
	if name := res.Meta.ExchangeTimezoneName; name != "" {
		loc, _ = time.LoadLocation(name)
	}

	rows := make([]ohlcv.Row, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		t := time.Unix(ts, 0)
		day := utils.TradingDate(t)
		if loc != nil {
			day = ohlcv.Date(t.In(loc))
		}

		rows = append(rows, ohlcv.Row{
			Time:   day,
			Open:   at(q.Open, i),
			High:   at(q.High, i),
			Low:    at(q.Low, i),
			Close:  at(q.Close, i),
			Volume: at(q.Volume, i),
		})
	}
	return rows
}

func at(vs []*float64, i int) float64 {
	if i >= len(vs) || vs[i] == nil {
		return math.NaN()
	}
	return *vs[i]
}
