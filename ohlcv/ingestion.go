package ohlcv

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Store persists observations. Insert must apply every observation of one call in a single unit: either all of them
// are durably visible afterwards or none are. An observation whose (time, ticker) already exists is skipped.
type Store interface {
	Insert(ctx context.Context, obs Observations) (inserted int64, err error)
}

// Observations is the lazy sequence handed to a Store.
type Observations interface {
	Next() bool
	Observation() PriceObservation
	Err() error
}

// Options tunes an Ingestion. Zero values fall back to a five year window, no timeout and a single attempt.
type Options struct {
	// TrailingYears is the window Run fetches.
	TrailingYears int
	// Timeout bounds a whole run. Zero means no timeout.
	Timeout time.Duration
	// Attempts is how many times a failing fetch is tried. Only transport failures are retried.
	Attempts int
}

// Ingestion fetches one ticker's daily bars from a Source and persists them through a Store.
type Ingestion struct {
	source Source
	store  Store
	log    *zap.Logger
	m      *Metrics
	opts   Options
	now    func() time.Time
}

// Result is the outcome of one run.
type Result struct {
	Ticker  string
	Range   Range
	Fetched int64
	Skipped int64
	Stored  int64
	// Err is nil on success, otherwise an *Error.
	Err error
}

// OK reports whether the run committed.
func (r Result) OK() bool {
	return r.Err == nil
}

type state string

const (
	stateStart      state = "start"
	stateValidating state = "validating_ticker"
	stateFetching   state = "fetching"
	statePersisting state = "persisting"
	stateCommitted  state = "committed"
	stateFailed     state = "failed"
)

// NewIngestor builds an Ingestion. The store may be nil when only Fetch is used.
func NewIngestor(source Source, store Store, log *zap.Logger, opts Options) *Ingestion {
	if opts.TrailingYears <= 0 {
		opts.TrailingYears = 5
	}
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	return &Ingestion{
		source: source,
		store:  store,
		log:    log,
		opts:   opts,
		now:    time.Now,
	}
}

// SetMetrics makes the ingestion report its row counts into m.
func (oi *Ingestion) SetMetrics(m *Metrics) {
	oi.m = m
}

// Run ingests the trailing window for the ticker.
func (oi *Ingestion) Run(ctx context.Context, ticker string) Result {
	return oi.RunRange(ctx, ticker, TrailingYears(oi.now(), oi.opts.TrailingYears))
}

// RunRange fetches the ticker's bars within r and stores every fully populated one. Nothing is written unless the
// fetch succeeded, and the rows of the run are committed together.
func (oi *Ingestion) RunRange(ctx context.Context, ticker string, r Range) Result {
	res := Result{Ticker: ticker, Range: r}
	log := oi.log.With(zap.String("ticker", ticker), zap.Stringer("range", r))
	log.Debug("ingestion state", zap.String("state", string(stateStart)), zap.Int("days", r.Days()))

	if oi.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, oi.opts.Timeout)
		defer cancel()
	}

	rows, fetchErr := oi.fetch(ctx, log, ticker, r)
	if fetchErr != nil {
		return oi.fail(log, res, fetchErr)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Warn("closing rows", zap.Error(err))
		}
	}()

	log.Debug("ingestion state", zap.String("state", string(statePersisting)))
	obs := &observations{ticker: ticker, window: r, rows: rows, m: oi.m}
	stored, err := oi.store.Insert(ctx, obs)
	res.Fetched, res.Skipped = obs.fetched, obs.skipped
	if err != nil {
		// A row source that broke mid-stream aborts the insert too; report the cause, not the abort.
		if srcErr := obs.Err(); srcErr != nil {
			return oi.fail(log, res, fetchError(ticker, srcErr))
		}
		return oi.fail(log, res, newError(KindPersistence, ticker, err))
	}

	res.Stored = stored
	oi.m.StoreRows(stored)
	log.Info("ingestion committed",
		zap.String("state", string(stateCommitted)),
		zap.Int64("fetched", res.Fetched),
		zap.Int64("skipped", res.Skipped),
		zap.Int64("stored", res.Stored),
	)
	return res
}

// Fetch validates the ticker and returns its bars within r without storing them. Errors are *Error values.
func (oi *Ingestion) Fetch(ctx context.Context, ticker string, r Range) (Rows, error) {
	rows, err := oi.fetch(ctx, oi.log.With(zap.String("ticker", ticker), zap.Stringer("range", r)), ticker, r)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (oi *Ingestion) fetch(ctx context.Context, log *zap.Logger, ticker string, r Range) (Rows, *Error) {
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(oi.opts.Attempts-1)),
		ctx,
	)

	op := func() (Rows, error) {
		log.Debug("ingestion state", zap.String("state", string(stateValidating)))
		if err := oi.source.Validate(ctx, ticker); err != nil {
			return nil, permanentUnlessTransport(ctx, err)
		}

		log.Debug("ingestion state", zap.String("state", string(stateFetching)))
		rows, err := oi.source.Fetch(ctx, ticker, r)
		if err != nil {
			return nil, permanentUnlessTransport(ctx, err)
		}
		return rows, nil
	}

	notify := func(err error, wait time.Duration) {
		log.Warn("fetch failed, retrying", zap.Error(err), zap.Duration("wait", wait))
	}

	rows, err := backoff.RetryNotifyWithData(op, b, notify)
	if err != nil {
		return nil, fetchError(ticker, err)
	}
	return rows, nil
}

func permanentUnlessTransport(ctx context.Context, err error) error {
	if errors.Is(err, ErrInvalidTicker) || errors.Is(err, ErrNoData) || ctx.Err() != nil {
		return backoff.Permanent(err)
	}
	return err
}

func (oi *Ingestion) fail(log *zap.Logger, res Result, err *Error) Result {
	res.Err = err
	log.Error("ingestion failed",
		zap.String("state", string(stateFailed)),
		zap.Stringer("kind", err.Kind),
		zap.Error(err.Err),
	)
	return res
}

// observations normalizes rows on the fly, dropping incomplete rows and rows outside the requested window.
type observations struct {
	ticker  string
	window  Range
	rows    Rows
	m       *Metrics
	cur     PriceObservation
	fetched int64
	skipped int64
}

func (o *observations) Next() bool {
	for o.rows.Next() {
		row := o.rows.Row()
		o.fetched++
		o.m.IngestRow(o.ticker)

		obs, ok := Normalize(o.ticker, row)
		if !ok || !o.window.Contains(obs.Time) {
			o.skipped++
			o.m.SkipRow()
			continue
		}

		o.cur = obs
		return true
	}
	return false
}

func (o *observations) Observation() PriceObservation {
	return o.cur
}

func (o *observations) Err() error {
	return o.rows.Err()
}
