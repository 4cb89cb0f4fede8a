package ohlcv

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
)

var (
	// ErrInvalidTicker is returned by a Source that has no metadata for a ticker.
	ErrInvalidTicker = errors.New("invalid ticker")
	// ErrNoData is returned by a Source when a valid ticker has no bars in the requested range.
	ErrNoData = errors.New("no data available")
)

// ErrorKind classifies why an ingestion run failed.
type ErrorKind int

const (
	KindTransport ErrorKind = iota
	KindInvalidTicker
	KindNoData
	KindPersistence
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidTicker:
		return "invalid_ticker"
	case KindNoData:
		return "no_data"
	case KindPersistence:
		return "persistence"
	default:
		return "transport"
	}
}

// Error is the failure of one ingestion run.
type Error struct {
	Kind   ErrorKind
	Ticker string
	Err    error
}

func newError(kind ErrorKind, ticker string, err error) *Error {
	var st interface{ StackTrace() pkgerrors.StackTrace }
	if !errors.As(err, &st) {
		err = pkgerrors.WithStack(err)
	}
	return &Error{Kind: kind, Ticker: ticker, Err: err}
}

// fetchError classifies an error returned by a Source.
func fetchError(ticker string, err error) *Error {
	switch {
	case errors.Is(err, ErrInvalidTicker):
		return newError(KindInvalidTicker, ticker, err)
	case errors.Is(err, ErrNoData):
		return newError(KindNoData, ticker, err)
	default:
		return newError(KindTransport, ticker, err)
	}
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a run error, and false for errors that did not come from a run.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
