package progress_printer

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// ProgressPrinter prints status messages to a terminal. Progress messages overwrite each other on one line, status
// lines are permanent. It is safe to use from the metrics ticker and the ingestion goroutine at the same time.
type ProgressPrinter struct {
	mu  sync.Mutex
	w   io.Writer // The writer to which messages are printed
	max int       // Longest message printed on the current line
}

func NewProgressPrinter(w io.Writer) *ProgressPrinter {
	return &ProgressPrinter{max: 0, w: w}
}

// Update prints a progress message that overwrites the previous message.
func (p *ProgressPrinter) Update(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.update(message)
}

// Complete prints a final message over the current progress line and moves to the next line.
func (p *ProgressPrinter) Complete(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.update(message)
	_, _ = fmt.Fprintln(p.w)
	// Nothing is left to clear on a fresh line.
	p.max = 0
}

// Printf prints a permanent, formatted status line, clearing any progress message first.
func (p *ProgressPrinter) Printf(format string, args ...any) {
	p.Complete(fmt.Sprintf(format, args...))
}

func (p *ProgressPrinter) update(message string) {
	// Clear the previous line by printing spaces
	_, _ = fmt.Fprint(p.w, message+strings.Repeat(" ", max(0, p.max-len(message)))+"\r")

	if len(message) > p.max {
		p.max = len(message)
	}
}
