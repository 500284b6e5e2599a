package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/eshaffer321/ledger-reconciler/internal/application/reconcile"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/storage"
)

// PrintHeader prints the application header
func PrintHeader(w io.Writer, dryRun bool) {
	mode := "LIVE"
	if dryRun {
		mode = "DRY-RUN"
	}
	fmt.Fprintf(w, "ledger-reconciler (%s mode)\n", mode)
}

// PrintSummary prints the run result summary
func PrintSummary(w io.Writer, s *reconcile.Summary) {
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "Run %s  %s  %s .. %s\n", s.RunID, s.Status, s.From.Format("2006-01-02"), s.To.Format("2006-01-02"))
	fmt.Fprintf(w, "Scanned=%d Targets=%d Counterparts=%d\n", s.CandidatesScanned, s.Targets, s.Counterparts)
	fmt.Fprintf(w, "Matched=%d NeedsReview=%d Unmatched=%d Skipped=%d Errors=%d\n",
		s.Matched, s.NeedsReview, s.Unmatched, s.Skipped(), s.Errors)
	fmt.Fprintf(w, "Value matched: %s\n", s.TotalValueMatched.StringFixed(2))

	if len(s.ByMatchType) > 0 {
		parts := make([]string, 0, len(s.ByMatchType))
		for mt, n := range s.ByMatchType {
			parts = append(parts, fmt.Sprintf("%s=%d", mt, n))
		}
		sort.Strings(parts)
		fmt.Fprintf(w, "By type: %s\n", strings.Join(parts, " "))
	}

	if len(s.SampleMatches) > 0 {
		fmt.Fprintln(w, "\nSample matches:")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, m := range s.SampleMatches {
			counterparts := strings.Join(m.CounterpartIDs(), ",")
			if id := m.BatchID(); id != "" {
				counterparts = id + " (" + counterparts + ")"
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%.2f\t%s\t%s\n",
				m.Target.ID, m.Target.Amount.StringFixed(2), m.MatchType, m.Confidence, m.Outcome, counterparts)
		}
		_ = tw.Flush()
	}

	if len(s.UnresolvedBatches) > 0 {
		fmt.Fprintln(w, "\nUnresolved settlement batches:")
		for _, u := range s.UnresolvedBatches {
			fmt.Fprintf(w, "  - %s (%d members): %s\n", u.ID, u.Members, u.Reason)
		}
	}
	printErrors(w, "Validation errors", s.ValidationErrors)
	printErrors(w, "Write errors", s.WriteErrors)
	if s.Error != "" {
		fmt.Fprintf(w, "\nRun failed: %s\n", s.Error)
	}

	if s.DryRun && s.Matched > 0 {
		fmt.Fprintln(w, "\nDry run: no records were changed.")
	}
}

func printErrors(w io.Writer, title string, errs []string) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, e := range errs {
		fmt.Fprintf(w, "  - %s\n", e)
	}
}

// PrintJSON writes v as indented JSON
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintRuns prints a table of runs
func PrintRuns(w io.Writer, runs []storage.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tMODE\tSTATUS\tMATCHED\tREVIEW\tUNMATCHED\tVALUE")
	for _, r := range runs {
		mode := "live"
		if r.DryRun {
			mode = "dry-run"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04"), mode, r.Status,
			r.Matched, r.NeedsReview, r.Unmatched, r.TotalValueMatched)
	}
	_ = tw.Flush()
}

// PrintMatches prints a table of persisted match results
func PrintMatches(w io.Writer, matches []storage.MatchRecord) {
	if len(matches) == 0 {
		fmt.Fprintln(w, "No match results.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tTYPE\tCONFIDENCE\tOUTCOME\tAPPLIED\tCOUNTERPARTS")
	for _, m := range matches {
		ids := make([]string, len(m.Counterparts))
		for i, cp := range m.Counterparts {
			ids[i] = cp.Source + ":" + cp.ID
		}
		fmt.Fprintf(tw, "%s:%s\t%s\t%.2f\t%s\t%t\t%s\n",
			m.TargetSource, m.TargetID, m.MatchType, m.Confidence, m.Outcome, m.Applied, strings.Join(ids, ","))
	}
	_ = tw.Flush()
}
