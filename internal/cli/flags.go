package cli

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/eshaffer321/ledger-reconciler/internal/application/reconcile"
)

// RunFlags are the flags of the run command
type RunFlags struct {
	DryRun          bool
	Sources         string
	From            string
	To              string
	LookbackDays    int
	Currency        string
	Threshold       float64
	NoPreserve      bool
	MarkNeedsReview bool
	SampleSize      int
	JSON            bool
	Verbose         bool
}

// ParseRunFlags parses run flags from args
func ParseRunFlags(args []string, output io.Writer) (*RunFlags, error) {
	var flags RunFlags
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.BoolVar(&flags.DryRun, "dry-run", false, "Match without writing links")
	fs.StringVar(&flags.Sources, "sources", "", "Comma separated sources to read (default all)")
	fs.StringVar(&flags.From, "from", "", "First bank entry date, YYYY-MM-DD")
	fs.StringVar(&flags.To, "to", "", "Last bank entry date, YYYY-MM-DD (default today)")
	fs.IntVar(&flags.LookbackDays, "days", 0, "Days to look back when -from is not set (0 = config)")
	fs.StringVar(&flags.Currency, "currency", "", "Only reconcile this currency")
	fs.Float64Var(&flags.Threshold, "threshold", 0, "Confidence threshold override (0 = config)")
	fs.BoolVar(&flags.NoPreserve, "no-preserve", false, "Allow relinking already reconciled records")
	fs.BoolVar(&flags.MarkNeedsReview, "mark-needs-review", false, "Flag ambiguous bank entries as needs_review")
	fs.IntVar(&flags.SampleSize, "sample", -1, "Sample matches in the summary (-1 = config)")
	fs.BoolVar(&flags.JSON, "json", false, "Print the summary as JSON")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return &flags, nil
}

// ToOptions applies the flags on top of defaults
func (f *RunFlags) ToOptions(defaults reconcile.Options) (reconcile.Options, error) {
	opts := defaults
	opts.DryRun = f.DryRun

	if f.Sources != "" {
		sources, err := ParseSources(f.Sources)
		if err != nil {
			return opts, err
		}
		opts.Sources = sources
	}

	var err error
	if opts.From, err = parseDay("from", f.From, opts.From); err != nil {
		return opts, err
	}
	if opts.To, err = parseDay("to", f.To, opts.To); err != nil {
		return opts, err
	}
	if !opts.From.IsZero() && !opts.To.IsZero() && opts.From.After(opts.To) {
		return opts, fmt.Errorf("-from %s is after -to %s", f.From, f.To)
	}

	if f.LookbackDays > 0 {
		opts.LookbackDays = f.LookbackDays
	}
	if f.Currency != "" {
		opts.Currency = f.Currency
	}
	if f.Threshold < 0 || f.Threshold > 100 {
		return opts, fmt.Errorf("-threshold must be between 0 and 100")
	}
	if f.Threshold > 0 {
		opts.Threshold = f.Threshold
	}
	if f.NoPreserve {
		opts.PreserveReconciliation = false
	}
	if f.MarkNeedsReview {
		opts.MarkNeedsReview = true
	}
	if f.SampleSize >= 0 {
		opts.SampleSize = f.SampleSize
	}
	return opts, nil
}

func parseDay(name, value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return fallback, fmt.Errorf("-%s must be YYYY-MM-DD: %w", name, err)
	}
	return t, nil
}

// ServeFlags holds the CLI flags for the serve command.
type ServeFlags struct {
	Port    int
	Verbose bool
}

// ParseServeFlags parses command line flags for the serve command.
func ParseServeFlags(args []string, output io.Writer) (*ServeFlags, error) {
	flags := &ServeFlags{}
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.IntVar(&flags.Port, "port", 0, "Port to listen on (0 = config)")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}

// RunsFlags holds the flags of the runs command
type RunsFlags struct {
	Limit   int
	ID      string
	Matches bool
}

// ParseRunsFlags parses flags for the runs command
func ParseRunsFlags(args []string, output io.Writer) (*RunsFlags, error) {
	flags := &RunsFlags{}
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.IntVar(&flags.Limit, "limit", 20, "Number of runs (or matches) to show")
	fs.StringVar(&flags.ID, "id", "", "Show a single run")
	fs.BoolVar(&flags.Matches, "matches", false, "With -id, list the run's match results")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if flags.Matches && flags.ID == "" {
		return nil, fmt.Errorf("-matches requires -id")
	}
	return flags, nil
}
