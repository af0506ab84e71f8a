package orchestrator

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/maya-1807/finance-manager/internal/core/domain"
)

// Summary aggregates the outcomes of one RunAll pass, in run order.
type Summary struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Outcomes  []domain.Outcome
}

// Failed reports whether any source ended in the Failed state.
func (s *Summary) Failed() bool {
	for _, o := range s.Outcomes {
		if o.Failed() {
			return true
		}
	}
	return false
}

// FailedSources lists the sources that failed, in run order.
func (s *Summary) FailedSources() []domain.SourceID {
	var ids []domain.SourceID
	for _, o := range s.Outcomes {
		if o.Failed() {
			ids = append(ids, o.Source)
		}
	}
	return ids
}

// Outcome returns the outcome recorded for a source.
func (s *Summary) Outcome(id domain.SourceID) (domain.Outcome, bool) {
	for _, o := range s.Outcomes {
		if o.Source == id {
			return o, true
		}
	}
	return domain.Outcome{}, false
}

// WriteTable prints one row per source.
func (s *Summary) WriteTable(out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tSTATUS\tATTEMPTS\tACCOUNTS\tTXNS\tDETAIL")
	for _, o := range s.Outcomes {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
			o.Source, o.State, o.Attempts, o.Accounts, o.Transactions, detail(o))
	}
	return w.Flush()
}

func detail(o domain.Outcome) string {
	if o.Failed() {
		if o.Err == nil {
			return "-"
		}
		return strings.ReplaceAll(o.Err.Error(), "\n", "; ")
	}
	if o.Location == "" {
		return "-"
	}
	return o.Location
}
