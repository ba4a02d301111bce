package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"sort"

	"github.com/odyssey-erp/microfin/internal/ledger/classify"
	"github.com/odyssey-erp/microfin/internal/loans/amortization"
)

// TablesValidateSummary describes the JSON response for tables validate.
type TablesValidateSummary struct {
	OK             bool                 `json:"ok"`
	Classification *ClassificationCheck `json:"classification,omitempty"`
	Savings        *SavingsCheck        `json:"savings,omitempty"`
	Errors         []string             `json:"errors"`
}

// ClassificationCheck reports a loaded classification table.
type ClassificationCheck struct {
	Path        string         `json:"path"`
	Version     string         `json:"version"`
	Fingerprint string         `json:"fingerprint"`
	Codes       map[string]int `json:"codes"`
	Polarities  int            `json:"polarities"`
}

// SavingsCheck reports a loaded savings table.
type SavingsCheck struct {
	Path  string `json:"path"`
	Steps int    `json:"steps"`
	Max   string `json:"max"`
}

// TablesValidateCommand loads both configuration tables and reports whether
// they are usable. Exit code 10 signals an invalid table.
func TablesValidateCommand(args []string, opts Options) int {
	opts = opts.withDefaults()
	fs := flag.NewFlagSet("tables validate", flag.ContinueOnError)
	fs.SetOutput(opts.Stderr)
	classPath := fs.String("classification", defaultString(opts.Getenv("CLASSIFICATION_TABLE_PATH"), "config/classification.yaml"), "classification table path")
	savingsPath := fs.String("savings", defaultString(opts.Getenv("SAVINGS_TABLE_PATH"), "config/savings.yaml"), "savings table path")
	jsonOutput := fs.Bool("json", false, "print a JSON summary")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	summary := TablesValidateSummary{Errors: []string{}}
	if table, err := classify.LoadTable(*classPath); err != nil {
		summary.Errors = append(summary.Errors, err.Error())
	} else if _, err := classify.NewClassifier(table); err != nil {
		summary.Errors = append(summary.Errors, err.Error())
	} else {
		check := &ClassificationCheck{
			Path:        *classPath,
			Version:     table.Version,
			Fingerprint: table.Fingerprint(),
			Codes:       make(map[string]int, len(table.Buckets)),
			Polarities:  len(table.Polarity),
		}
		for bucket, codes := range table.Buckets {
			check.Codes[string(bucket)] = len(codes)
		}
		summary.Classification = check
	}
	if savings, err := amortization.LoadSavingsTable(*savingsPath); err != nil {
		summary.Errors = append(summary.Errors, err.Error())
	} else {
		check := &SavingsCheck{Path: *savingsPath, Steps: len(savings.Steps)}
		if n := len(savings.Steps); n > 0 {
			check.Max = savings.Steps[n-1].UpTo.String()
		}
		summary.Savings = check
	}
	summary.OK = len(summary.Errors) == 0

	if *jsonOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "tables validate: encode json: %v\n", err)
			return 1
		}
	} else {
		renderTablesHuman(opts.Stdout, summary)
	}
	if !summary.OK {
		return 10
	}
	return 0
}

func renderTablesHuman(out io.Writer, summary TablesValidateSummary) {
	if c := summary.Classification; c != nil {
		_, _ = fmt.Fprintf(out, "Classification table %s (version %s, fingerprint %s)\n", c.Path, c.Version, c.Fingerprint)
		buckets := make([]string, 0, len(c.Codes))
		for b := range c.Codes {
			buckets = append(buckets, b)
		}
		sort.Strings(buckets)
		for _, b := range buckets {
			_, _ = fmt.Fprintf(out, " - %s: %d code(s)\n", b, c.Codes[b])
		}
		_, _ = fmt.Fprintf(out, " - %d transaction kind polarities\n", c.Polarities)
	}
	if s := summary.Savings; s != nil {
		_, _ = fmt.Fprintf(out, "Savings table %s: %d step(s) up to %s\n", s.Path, s.Steps, s.Max)
	}
	if summary.OK {
		_, _ = fmt.Fprintln(out, "All tables are valid.")
		return
	}
	_, _ = fmt.Fprintf(out, "%d problem(s) detected:\n", len(summary.Errors))
	for _, e := range summary.Errors {
		_, _ = fmt.Fprintf(out, " - %s\n", e)
	}
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
