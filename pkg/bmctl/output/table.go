package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/telekom/bulkmail/pkg/contacts"
	"github.com/telekom/bulkmail/pkg/dispatch"
)

// WriteContactTable prints one row per contact with the header fields as columns.
func WriteContactTable(w io.Writer, list []contacts.Contact) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	if len(list) > 0 {
		fields := list[0].Fields()
		header := make([]string, 0, len(fields)+1)
		header = append(header, "#")
		for _, f := range fields {
			header = append(header, strings.ToUpper(f))
		}
		_, _ = fmt.Fprintln(tw, strings.Join(header, "\t"))
	}
	for i, c := range list {
		_, _ = fmt.Fprintf(tw, "%d\t%s\n", i+1, strings.Join(dashIfEmpty(c.Values()), "\t"))
	}
	_ = tw.Flush()
}

// WriteContactTableCompact prints only the recipient address and field count.
func WriteContactTableCompact(w io.Writer, list []contacts.Contact) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tEMAIL\tFIELDS")
	for i, c := range list {
		email := c.Email()
		if email == "" {
			email = "-"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%d\n", i+1, email, len(c.Values()))
	}
	_ = tw.Flush()
}

// WriteResultTable prints per-recipient delivery results in backend order.
func WriteResultTable(w io.Writer, results []dispatch.RecipientResult) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "EMAIL\tSTATUS\tERROR")
	for _, r := range results {
		errText := r.Error
		if errText == "" {
			errText = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Email, r.Status, errText)
	}
	_ = tw.Flush()
}

// ContextRow is one line of "config get-contexts".
type ContextRow struct {
	Current bool
	Name    string
	Server  string
	SMTP    string
	Sender  string
}

func WriteContextTable(w io.Writer, rows []ContextRow) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "CURRENT\tNAME\tSERVER\tSMTP\tSENDER")
	for _, r := range rows {
		marker := ""
		if r.Current {
			marker = "*"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", marker, r.Name, r.Server, dash(r.SMTP), dash(r.Sender))
	}
	_ = tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func dashIfEmpty(values []string) []string {
	for i := range values {
		values[i] = dash(values[i])
	}
	return values
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}
