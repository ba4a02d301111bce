package amortization

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ErrNoSavingsStep indicates a principal above the highest configured step.
var ErrNoSavingsStep = errors.New("amortization: no weekly savings step for principal")

// SavingsStep maps principals up to and including UpTo to a weekly savings fund.
type SavingsStep struct {
	UpTo   decimal.Decimal `yaml:"upTo"`
	Weekly decimal.Decimal `yaml:"weekly"`
}

// SavingsTable is the weekly savings fund step function.
type SavingsTable struct {
	Steps []SavingsStep `yaml:"steps"`
}

// NewSavingsTable sorts steps by ceiling and rejects duplicates.
func NewSavingsTable(steps []SavingsStep) (SavingsTable, error) {
	sorted := append([]SavingsStep(nil), steps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UpTo.LessThan(sorted[j].UpTo) })
	for i, s := range sorted {
		if s.UpTo.IsNegative() || s.Weekly.IsNegative() {
			return SavingsTable{}, fmt.Errorf("amortization: savings step %d: %w", i, ErrInvalidAmount)
		}
		if i > 0 && sorted[i-1].UpTo.Equal(s.UpTo) {
			return SavingsTable{}, fmt.Errorf("amortization: duplicate savings step %s", s.UpTo.String())
		}
	}
	return SavingsTable{Steps: sorted}, nil
}

// Lookup returns the weekly savings fund for principal.
func (t SavingsTable) Lookup(principal decimal.Decimal) (decimal.Decimal, error) {
	for _, s := range t.Steps {
		if principal.LessThanOrEqual(s.UpTo) {
			return s.Weekly, nil
		}
	}
	return decimal.Zero, fmt.Errorf("%w: %s", ErrNoSavingsStep, principal.String())
}

// ParseSavingsTable decodes a YAML step table.
func ParseSavingsTable(r io.Reader) (SavingsTable, error) {
	var raw SavingsTable
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return SavingsTable{}, fmt.Errorf("amortization: decode savings table: %w", err)
	}
	return NewSavingsTable(raw.Steps)
}

// LoadSavingsTable reads a YAML step table from disk.
func LoadSavingsTable(path string) (SavingsTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return SavingsTable{}, fmt.Errorf("amortization: open savings table: %w", err)
	}
	defer f.Close()
	return ParseSavingsTable(f)
}
