package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/telekom/bulkmail/pkg/report"
)

// EntryWriter prints status entries as tagged lines. It satisfies report.Sink.
type EntryWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewEntryWriter(w io.Writer) *EntryWriter {
	return &EntryWriter{w: w}
}

func (e *EntryWriter) Emit(entry report.Entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, _ = fmt.Fprintf(e.w, "%s %s\n", Tag(entry.Severity), entry.Text)
}

// Tag returns the bracketed label printed before an entry.
func Tag(sev report.Severity) string {
	switch sev {
	case report.Success:
		return "[OK]"
	case report.Error:
		return "[ERROR]"
	default:
		return "[INFO]"
	}
}

// WriteRunSummary prints the closing line of a run.
func WriteRunSummary(w io.Writer, runID, status string, counts report.Counts, started, finished time.Time) {
	_, _ = fmt.Fprintf(w, "\nRun %s %s in %s (%d ok, %d failed) at %s\n",
		runID, status, finished.Sub(started).Round(time.Millisecond),
		counts.Success, counts.Error, formatTime(finished))
}
