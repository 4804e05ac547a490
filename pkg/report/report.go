package report

import (
	"fmt"
	"sync"

	"github.com/telekom/bulkmail/pkg/dispatch"
)

// Severity tags a status entry.
type Severity string

const (
	Info    Severity = "info"
	Success Severity = "success"
	Error   Severity = "error"
)

// UnreachableHint follows every failed dispatch.
const UnreachableHint = "Tip: check that the bulkmail backend is running and reachable."

// Entry is one line of operator-facing output.
type Entry struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Text     string   `json:"text" yaml:"text"`
}

func (e Entry) String() string {
	return fmt.Sprintf("[%s] %s", e.Severity, e.Text)
}

func Infof(format string, args ...any) Entry {
	return Entry{Severity: Info, Text: fmt.Sprintf(format, args...)}
}

func Successf(format string, args ...any) Entry {
	return Entry{Severity: Success, Text: fmt.Sprintf(format, args...)}
}

func Errorf(format string, args ...any) Entry {
	return Entry{Severity: Error, Text: fmt.Sprintf(format, args...)}
}

// Render turns a dispatch outcome into status entries. Per-recipient entries
// keep the order the backend reported them in.
func Render(outcome dispatch.Outcome) []Entry {
	switch outcome.Kind {
	case dispatch.Succeeded:
		entries := make([]Entry, 0, 1+len(outcome.Results))
		entries = append(entries, Entry{Severity: Success, Text: outcome.Message})
		for _, r := range outcome.Results {
			entries = append(entries, renderRecipient(r))
		}
		return entries
	case dispatch.TransportFailure:
		cause := outcome.Message
		if outcome.Cause != nil {
			cause = outcome.Cause.Error()
		}
		return []Entry{
			Errorf("network error: %s", cause),
			{Severity: Info, Text: UnreachableHint},
		}
	default:
		return []Entry{
			{Severity: Error, Text: outcome.Message},
			{Severity: Info, Text: UnreachableHint},
		}
	}
}

func renderRecipient(r dispatch.RecipientResult) Entry {
	if r.Delivered() {
		return Entry{Severity: Success, Text: r.Email}
	}
	reason := r.Error
	if reason == "" {
		reason = r.Status
	}
	if reason == "" {
		reason = "unknown error"
	}
	return Errorf("%s: %s", r.Email, reason)
}

// Sink receives entries as soon as a stage produces them.
type Sink interface {
	Emit(Entry)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Entry)

func (f SinkFunc) Emit(e Entry) {
	f(e)
}

// Discard drops every entry.
var Discard Sink = SinkFunc(func(Entry) {})

// Trail is an append-only, ordered log of entries. It is safe for
// concurrent readers while a run appends.
type Trail struct {
	mu      sync.RWMutex
	entries []Entry
}

// Emit appends e; it makes Trail usable as a Sink.
func (t *Trail) Emit(e Entry) {
	t.Append(e)
}

// Append adds entries at the end in the given order.
func (t *Trail) Append(entries ...Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, entries...)
}

// Entries returns a copy of all entries, oldest first.
func (t *Trail) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries recorded so far.
func (t *Trail) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Counts tallies entries per severity.
type Counts struct {
	Info    int `json:"info" yaml:"info"`
	Success int `json:"success" yaml:"success"`
	Error   int `json:"error" yaml:"error"`
}

// Summarize counts entries per severity.
func Summarize(entries []Entry) Counts {
	var c Counts
	for _, e := range entries {
		switch e.Severity {
		case Info:
			c.Info++
		case Success:
			c.Success++
		case Error:
			c.Error++
		}
	}
	return c
}
