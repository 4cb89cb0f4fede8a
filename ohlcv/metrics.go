package ohlcv

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"stock-ingest/utils/progress_printer"
)

// Metrics counts the rows of the current run. It is written by the ingestion goroutine and read by the printer, so
// all fields are safe for concurrent use. A nil *Metrics discards everything.
type Metrics struct {
	mu            sync.Mutex
	currentSource string
	currentTicker string
	rows          atomic.Uint64
	skippedRows   atomic.Uint64
	storedRows    atomic.Uint64
}

func (m *Metrics) SetSource(source string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.currentSource = source
	m.mu.Unlock()
}

func (m *Metrics) IngestRow(ticker string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.currentTicker = ticker
	m.mu.Unlock()
	m.rows.Add(1)
}

func (m *Metrics) SkipRow() {
	if m == nil {
		return
	}
	m.skippedRows.Add(1)
}

func (m *Metrics) StoreRows(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.storedRows.Add(uint64(n))
}

// Counts returns the rows read, skipped and stored so far.
func (m *Metrics) Counts() (read, skipped, stored uint64) {
	if m == nil {
		return 0, 0, 0
	}
	return m.rows.Load(), m.skippedRows.Load(), m.storedRows.Load()
}

func (m *Metrics) Print(pp *progress_printer.ProgressPrinter) {
	m.mu.Lock()
	source, ticker := m.currentSource, m.currentTicker
	m.mu.Unlock()

	pp.Update(fmt.Sprintf(
		"[%s] %d bars read, %d bars skipped (current ticker: %s)",
		source,
		m.rows.Load(),
		m.skippedRows.Load(),
		ticker,
	))
}

// StartPrinting prints the counters every 100ms until ctx is done or the returned stop function is called. stop
// waits for the printing goroutine to exit, so nothing is printed after it returns.
func (m *Metrics) StartPrinting(ctx context.Context, pp *progress_printer.ProgressPrinter) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t := time.NewTicker(100 * time.Millisecond)

	go func() {
		defer close(done)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.Print(pp)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
