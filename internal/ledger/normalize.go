package ledger

import (
	"errors"
	"fmt"
)

// ErrNegativeAmount indicates a debit or credit below zero.
var ErrNegativeAmount = errors.New("ledger: negative amount")

// Normalize converts a raw posting line into an Entry. The signed amount is the
// debit when one is set and non-zero, otherwise the negated credit. Both
// columns are kept as given for column-faithful reports.
func Normalize(line int, raw RawEntry) (Entry, error) {
	debit := ValueOrZero(raw.Debit)
	credit := ValueOrZero(raw.Credit)
	if debit.IsNegative() || credit.IsNegative() {
		return Entry{}, fmt.Errorf("%w: line %d account %s", ErrNegativeAmount, line, raw.AccountCode.Code)
	}
	signed := credit.Neg()
	if !debit.IsZero() {
		signed = debit
	}
	return Entry{
		Line:          line,
		AccountCode:   raw.AccountCode,
		Debit:         debit,
		Credit:        credit,
		DebitPresent:  raw.Debit != nil,
		CreditPresent: raw.Credit != nil,
		Signed:        signed,
		Client:        raw.Client,
		Parent:        raw.Parent,
		Cycle:         raw.Cycle,
	}, nil
}

// NormalizeAll normalizes every raw entry in order. Lines with neither side
// present are kept as zero and reported as info.
func NormalizeAll(raws []RawEntry) ([]Entry, Diagnostics, error) {
	entries := make([]Entry, 0, len(raws))
	var diags Diagnostics
	for i, raw := range raws {
		entry, err := Normalize(i, raw)
		if err != nil {
			return nil, nil, err
		}
		if !entry.DebitPresent && !entry.CreditPresent {
			diags.Add(Diagnostic{
				Kind:          DiagEmptyEntry,
				Severity:      SeverityInfo,
				Message:       fmt.Sprintf("line %d has neither debit nor credit", i),
				AccountCode:   raw.AccountCode.Code,
				TransactionID: raw.Parent.ID,
				ClientID:      entry.ClientID(),
			})
		}
		entries = append(entries, entry)
	}
	return entries, diags, nil
}
