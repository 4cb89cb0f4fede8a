package providers

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"stock-ingest/config"
	"stock-ingest/ohlcv"
	"stock-ingest/utils"
)

// errFlatFileMissing is returned by a flatFileOpener when no file exists for a day: weekends, market holidays, and
// the current day, whose file is not published until 11AM ET the following day.
var errFlatFileMissing = errors.New("flat file does not exist")

type flatFileOpener interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

type tickerValidator interface {
	Validate(ctx context.Context, ticker string) error
}

// PolygonFlatFiles reads daily bars from Polygon's S3 flat files, one gzipped CSV per trading day holding every
// ticker. Ticker metadata still comes from the REST API, as the flat files carry none.
type PolygonFlatFiles struct {
	m     *ohlcv.Metrics
	log   *zap.Logger
	meta  tickerValidator
	files flatFileOpener
	now   func() time.Time
}

func NewPolygonFlatFiles(cfg config.PolygonConfig, meta *Polygon, log *zap.Logger) (*PolygonFlatFiles, error) {
	s3, err := minio.New(
		cfg.FlatFilesEndpoint,
		&minio.Options{
			Creds: credentials.NewStaticV4(
				cfg.FlatFilesAccessKeyID,
				cfg.FlatFilesSecretAccessKey,
				"",
			),
			Secure: true,
		})
	if err != nil {
		return nil, fmt.Errorf("error instantiating MinIO client: %w", err)
	}

	return &PolygonFlatFiles{
		log:   log,
		meta:  meta,
		files: &minioOpener{s3: s3, bucket: cfg.FlatFilesBucket},
		now:   time.Now,
	}, nil
}

func (pf *PolygonFlatFiles) SetMetrics(m *ohlcv.Metrics) {
	pf.m = m
}

func (pf *PolygonFlatFiles) Validate(ctx context.Context, ticker string) error {
	return pf.meta.Validate(ctx, ticker)
}

// Fetch returns the ticker's bars from the flat files of each weekday in r. Files are opened one at a time as the
// rows are read. The range is cut off at today, as later files cannot exist.
func (pf *PolygonFlatFiles) Fetch(ctx context.Context, ticker string, r ohlcv.Range) (ohlcv.Rows, error) {
	last := r.To
	if today := utils.TradingDate(pf.now()); today.Before(last) {
		last = today
	}

	rows, err := ohlcv.NonEmpty(&flatFileRows{
		ctx:    ctx,
		files:  pf.files,
		log:    pf.log,
		m:      pf.m,
		ticker: ticker,
		day:    r.From,
		last:   last,
	})
	if errors.Is(err, ohlcv.ErrNoData) {
		return nil, fmt.Errorf("no flat file holds %q in %s: %w", ticker, r, err)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "polygon flat files")
	}
	return rows, nil
}

type flatFileRows struct {
	ctx    context.Context
	files  flatFileOpener
	log    *zap.Logger
	m      *ohlcv.Metrics
	ticker string
	day    time.Time // next day to open
	last   time.Time

	file io.ReadCloser
	gz   *gzip.Reader
	csv  *csv.Reader
	cols map[string]int
	row  ohlcv.Row
	err  error
}

// Next advances to the next row of the ticker. Rows of other tickers are passed over; when a file is exhausted the
// next existing file is opened, until the last day of the range has been read.
func (it *flatFileRows) Next() bool {
	for it.err == nil {
		if it.csv == nil && !it.openNextFile() {
			return false
		}

		rec, err := it.csv.Read()
		if err == io.EOF {
			it.closeFile()
			continue
		}
		if err != nil {
			it.err = fmt.Errorf("error reading flat file row: %w", err)
			it.closeFile()
			return false
		}

		if rec[it.cols["ticker"]] != it.ticker {
			continue
		}
		it.row = it.parse(rec)
		return true
	}
	return false
}

func (it *flatFileRows) Row() ohlcv.Row {
	return it.row
}

func (it *flatFileRows) Err() error {
	return it.err
}

func (it *flatFileRows) Close() error {
	it.closeFile()
	return nil
}

// openNextFile opens the first existing flat file between `it.day` and `it.last`, and reads its header. It returns
// false once no day is left or on error, which is kept in `it.err`.
func (it *flatFileRows) openNextFile() bool {
	for ; !it.day.After(it.last); it.day = it.day.AddDate(0, 0, 1) {
		if utils.IsWeekend(it.day) {
			continue
		}
		if err := it.ctx.Err(); err != nil {
			it.err = err
			return false
		}

		name := flatFileName(it.day)
		file, err := it.files.Open(it.ctx, name)
		if errors.Is(err, errFlatFileMissing) {
			it.log.Debug("flat file does not exist, skipping", zap.String("file", name))
			continue
		}
		if err != nil {
			it.err = fmt.Errorf("error opening flat file %s: %w", name, err)
			return false
		}

		if err := it.readHeader(file); err != nil {
			_ = file.Close()
			it.err = fmt.Errorf("flat file %s: %w", name, err)
			return false
		}

		it.m.SetSource(name)
		it.day = it.day.AddDate(0, 0, 1)
		return true
	}
	return false
}

var flatFileColumns = []string{"ticker", "volume", "open", "close", "high", "low", "window_start"}

func (it *flatFileRows) readHeader(file io.ReadCloser) error {
	gz, err := gzip.NewReader(file)
	if err != nil {
		return err
	}

	r := csv.NewReader(gz)
	header, err := r.Read()
	if err != nil {
		_ = gz.Close()
		return fmt.Errorf("error reading header row: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[h] = i
	}
	for _, c := range flatFileColumns {
		if _, ok := cols[c]; !ok {
			_ = gz.Close()
			return fmt.Errorf("missing column %q", c)
		}
	}
	// Every record then has the header's width, so column lookups stay in range.
	r.FieldsPerRecord = len(header)

	it.file, it.gz, it.csv, it.cols = file, gz, r, cols
	return nil
}

func (it *flatFileRows) closeFile() {
	if it.gz != nil {
		_ = it.gz.Close()
	}
	if it.file != nil {
		if err := it.file.Close(); err != nil {
			it.log.Warn("error closing flat file", zap.Error(err))
		}
	}
	it.file, it.gz, it.csv = nil, nil, nil
}

// parse converts a CSV record. An empty or malformed numeric field becomes NaN, so the row is dropped downstream
// rather than stored with a made-up value.
func (it *flatFileRows) parse(rec []string) ohlcv.Row {
	f := func(col string) float64 {
		v, err := strconv.ParseFloat(rec[it.cols[col]], 64)
		if err != nil {
			return math.NaN()
		}
		return v
	}

	// window_start is in nanoseconds since epoch.
	ns, _ := strconv.ParseInt(rec[it.cols["window_start"]], 10, 64)

	return ohlcv.Row{
		Time:   utils.TradingDate(time.Unix(0, ns)),
		Open:   f("open"),
		High:   f("high"),
		Low:    f("low"),
		Close:  f("close"),
		Volume: f("volume"),
	}
}

// Polygon's flat file naming structure is YYYY-MM-DD, accessible as a gzipped CSV file under the `day_aggs_v1`
// directory, with year and month subdirectories.
func flatFileName(day time.Time) string {
	return path.Join(
		"us_stocks_sip",
		"day_aggs_v1",
		day.Format("2006"),
		day.Format("01"),
		day.Format(time.DateOnly)+".csv.gz",
	)
}

type minioOpener struct {
	s3     *minio.Client
	bucket string
}

// Open fetches the object. minio.GetObject only instantiates the object, so Stat is what reaches the server and tells
// whether the file exists; Polygon answers 403 rather than 404 for files it does not have.
func (o *minioOpener) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	obj, err := o.s3.GetObject(ctx, o.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}

	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		code := minio.ToErrorResponse(err).StatusCode
		if code == http.StatusForbidden || code == http.StatusNotFound {
			return nil, errFlatFileMissing
		}
		return nil, err
	}

	return obj, nil
}
