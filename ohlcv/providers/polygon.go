package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/iter"
	"github.com/polygon-io/client-go/rest/models"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"stock-ingest/ohlcv"
	"stock-ingest/utils"
)

// aggsPageLimit is the largest page Polygon serves; five years of daily bars fit in one page.
const aggsPageLimit = 50000

// Polygon fetches daily bars from the Polygon REST API. It conforms to the `ohlcv.Source` interface.
type Polygon struct {
	m      *ohlcv.Metrics
	log    *zap.Logger
	client *polygon.Client
}

func NewPolygon(apiKey string, log *zap.Logger) *Polygon {
	return &Polygon{
		log:    log,
		client: polygon.New(apiKey),
	}
}

func (p *Polygon) SetMetrics(m *ohlcv.Metrics) {
	p.m = m
}

// Validate looks the ticker up in Polygon's reference data. A 404, or a response without a ticker, means Polygon does
// not know the symbol.
func (p *Polygon) Validate(ctx context.Context, ticker string) error {
	res, err := p.client.GetTickerDetails(ctx, &models.GetTickerDetailsParams{Ticker: ticker})
	if err != nil {
		var errRes *models.ErrorResponse
		if errors.As(err, &errRes) && errRes.StatusCode == http.StatusNotFound {
			return fmt.Errorf("polygon has no ticker %q: %w", ticker, ohlcv.ErrInvalidTicker)
		}
		return pkgerrors.Wrap(err, "polygon: get ticker details")
	}

	if res == nil || res.Results.Ticker == "" {
		return fmt.Errorf("polygon returned no details for %q: %w", ticker, ohlcv.ErrInvalidTicker)
	}

	p.log.Debug("ticker validated",
		zap.String("ticker", ticker),
		zap.String("name", res.Results.Name),
		zap.Bool("active", res.Results.Active),
	)
	return nil
}

// Fetch lists the adjusted daily aggregates of the ticker within r, oldest first. Pages are requested as the rows are
// read.
func (p *Polygon) Fetch(ctx context.Context, ticker string, r ohlcv.Range) (ohlcv.Rows, error) {
	p.m.SetSource("polygon")

	params := models.ListAggsParams{
		Ticker:     ticker,
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(r.From),
		To:         models.Millis(r.To),
	}.WithAdjusted(true).WithOrder(models.Asc).WithLimit(aggsPageLimit)

	rows, err := ohlcv.NonEmpty(&polygonAggRows{it: p.client.ListAggs(ctx, params)})
	if errors.Is(err, ohlcv.ErrNoData) {
		return nil, fmt.Errorf("polygon has no daily bars for %q in %s: %w", ticker, r, err)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "polygon: list aggs")
	}
	return rows, nil
}

// polygonAggRows adapts the client's paging iterator to ohlcv.Rows.
type polygonAggRows struct {
	it *iter.Iter[models.Agg]
}

func (pr *polygonAggRows) Next() bool {
	return pr.it.Next()
}

// Row converts an aggregate. Daily bars are stamped at midnight Eastern Time, which utils.TradingDate maps back to the
// trading date.
func (pr *polygonAggRows) Row() ohlcv.Row {
	a := pr.it.Item()
	return ohlcv.Row{
		Time:   utils.TradingDate(time.Time(a.Timestamp)),
		Open:   a.Open,
		High:   a.High,
		Low:    a.Low,
		Close:  a.Close,
		Volume: a.Volume,
	}
}

func (pr *polygonAggRows) Err() error {
	return pr.it.Err()
}

func (pr *polygonAggRows) Close() error {
	return nil
}
