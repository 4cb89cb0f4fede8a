package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"stock-ingest/config"
	"stock-ingest/ohlcv"
	pip "stock-ingest/ohlcv/providers"
	"stock-ingest/utils"
	"stock-ingest/utils/progress_printer"
)

const dateLayout = "2006-01-02"

// args are the parsed command line arguments.
type args struct {
	ticker    string
	from, to  time.Time
	explicit  bool
	fetchOnly bool
	migrate   bool
}

var errUsage = errors.New("usage")

func parseArgs(argv []string, stderr io.Writer, now time.Time) (args, error) {
	fs := flag.NewFlagSet("stock-ingest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_, _ = fmt.Fprintln(stderr, "usage: stock-ingest [flags] <TICKER>")
		fs.PrintDefaults()
	}

	from := fs.String("from", "", "first date to ingest (YYYY-MM-DD); defaults to the trailing window")
	to := fs.String("to", "", "last date to ingest (YYYY-MM-DD); defaults to today")
	fetchOnly := fs.Bool("fetch-only", false, "print the fetched bars as CSV instead of storing them")
	migrate := fs.Bool("migrate", false, "create the stock_data table before ingesting")

	if err := fs.Parse(argv); err != nil {
		return args{}, errUsage
	}
	if fs.NArg() != 1 || fs.Arg(0) == "" {
		fs.Usage()
		return args{}, errUsage
	}

	a := args{ticker: fs.Arg(0), fetchOnly: *fetchOnly, migrate: *migrate}

	if *to != "" && *from == "" {
		_, _ = fmt.Fprintln(stderr, "-to requires -from")
		return args{}, errUsage
	}
	if *from == "" {
		return a, nil
	}

	var err error
	if a.from, err = time.Parse(dateLayout, *from); err != nil {
		_, _ = fmt.Fprintf(stderr, "invalid -from: %v\n", err)
		return args{}, errUsage
	}
	a.to = utils.TradingDate(now)
	if *to != "" {
		if a.to, err = time.Parse(dateLayout, *to); err != nil {
			_, _ = fmt.Fprintf(stderr, "invalid -to: %v\n", err)
			return args{}, errUsage
		}
	}
	a.explicit = true

	return a, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(argv []string, stdout, stderr io.Writer) int {
	a, err := parseArgs(argv, stderr, time.Now())
	if err != nil {
		return 2
	}

	// Application startup: load environment variables, build the config and logger once and hand them down.
	if err := utils.LoadEnvFile(); err != nil {
		_, _ = fmt.Fprintf(stderr, "loading .env: %v\n", err)
		return 1
	}
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	log, err := utils.NewLogger(cfg.LogLevel)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "creating logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	r := ohlcv.TrailingYears(time.Now(), cfg.TrailingYears)
	if a.explicit {
		if r, err = ohlcv.NewRange(a.from, a.to); err != nil {
			_, _ = fmt.Fprintln(stderr, err)
			return 2
		}
	}

	// Fetch-only keeps stdout for the CSV.
	out := stdout
	if a.fetchOnly {
		out = stderr
	}
	pp := progress_printer.NewProgressPrinter(out)
	pp.Printf("Fetching data for %s...", a.ticker)

	ctx := context.Background()
	m := &ohlcv.Metrics{}

	source, err := pip.New(cfg, log, m)
	if err != nil {
		log.Error("building source", zap.Error(err))
		pp.Printf("Error processing %s: %v", a.ticker, err)
		return 1
	}

	opts := ohlcv.Options{
		TrailingYears: cfg.TrailingYears,
		Timeout:       cfg.FetchTimeout,
		Attempts:      cfg.FetchAttempts,
	}

	if a.fetchOnly {
		return fetchOnly(ctx, ohlcv.NewIngestor(source, nil, log, opts), pp, stdout, a.ticker, r)
	}

	// The database is only reached once the ticker has been validated and its bars fetched.
	store := &lazyStore{cfg: cfg.DB, migrate: a.migrate, log: log}
	defer func() { _ = store.Close(context.Background()) }()

	oi := ohlcv.NewIngestor(source, store, log, opts)
	oi.SetMetrics(m)

	stop := m.StartPrinting(ctx, pp)
	res := oi.RunRange(ctx, a.ticker, r)
	stop()

	pp.Printf("%s", statusLine(res))
	if !res.OK() {
		return 1
	}
	pp.Printf("%d bars fetched, %d skipped, %d new rows", res.Fetched, res.Skipped, res.Stored)

	latest, ok, err := store.Latest(ctx, a.ticker)
	switch {
	case err != nil:
		log.Warn("reading latest observation", zap.Error(err))
	case ok:
		pp.Printf("Latest %s: %s close %s volume %d",
			latest.Ticker, latest.Time.Format(dateLayout), latest.Price, latest.Volume)
	}

	return 0
}

// statusLine renders the human readable outcome of a run.
func statusLine(res ohlcv.Result) string {
	if res.OK() {
		return fmt.Sprintf("Successfully stored data for %s", res.Ticker)
	}

	kind, _ := ohlcv.KindOf(res.Err)
	switch kind {
	case ohlcv.KindInvalidTicker:
		return fmt.Sprintf("Invalid ticker: %s", res.Ticker)
	case ohlcv.KindNoData:
		return fmt.Sprintf("No data available for %s", res.Ticker)
	default:
		return fmt.Sprintf("Error processing %s: %v", res.Ticker, res.Err)
	}
}

func fetchOnly(ctx context.Context, oi *ohlcv.Ingestion, pp *progress_printer.ProgressPrinter, w io.Writer, ticker string, r ohlcv.Range) int {
	rows, err := oi.Fetch(ctx, ticker, r)
	if err != nil {
		pp.Printf("%s", statusLine(ohlcv.Result{Ticker: ticker, Err: err}))
		return 1
	}
	defer func() { _ = rows.Close() }()

	if err := writeCSV(w, rows); err != nil {
		pp.Printf("%s", statusLine(ohlcv.Result{Ticker: ticker, Err: err}))
		return 1
	}
	return 0
}

// writeCSV prints rows with a header line. Missing values are left empty.
func writeCSV(w io.Writer, rows ohlcv.Rows) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}

	for rows.Next() {
		row := rows.Row()
		if err := cw.Write([]string{
			row.Time.Format(dateLayout),
			formatFloat(row.Open),
			formatFloat(row.High),
			formatFloat(row.Low),
			formatFloat(row.Close),
			formatFloat(row.Volume),
		}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
