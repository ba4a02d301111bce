// Package aging buckets loan payments and balances by days past maturity.
package aging

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/microfin/internal/ledger"
	"github.com/odyssey-erp/microfin/internal/ledger/grouping"
)

// Bucket is a fixed day range measured from the maturity date.
type Bucket string

const (
	Current     Bucket = "current"
	D1to30      Bucket = "d1to30"
	D31to60     Bucket = "d31to60"
	D61to90     Bucket = "d61to90"
	D91to120    Bucket = "d91to120"
	D121to180   Bucket = "d121to180"
	D181to360   Bucket = "d181to360"
	Over360     Bucket = "over360"
	bucketCount        = 8
)

// Buckets lists every bucket in report order.
var Buckets = [bucketCount]Bucket{Current, D1to30, D31to60, D61to90, D91to120, D121to180, D181to360, Over360}

// BucketFor maps days past maturity to a bucket. Non-positive days are current.
func BucketFor(diffDays int) Bucket {
	switch {
	case diffDays <= 0:
		return Current
	case diffDays <= 30:
		return D1to30
	case diffDays <= 60:
		return D31to60
	case diffDays <= 90:
		return D61to90
	case diffDays <= 120:
		return D91to120
	case diffDays <= 180:
		return D121to180
	case diffDays <= 360:
		return D181to360
	default:
		return Over360
	}
}

// DaysBetween counts calendar days from maturity to t using civil dates in
// UTC, so time of day never shifts a payment into another bucket.
func DaysBetween(maturity, t time.Time) int {
	m := civil(maturity)
	d := civil(t)
	return int(d.Sub(m).Hours() / 24)
}

func civil(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

// Payment is a dated amount collected against a loan.
type Payment struct {
	PostedAt time.Time
	Amount   decimal.Decimal
}

// Result holds accumulated amounts per bucket. Payments on or before maturity
// are not aged: they are counted in NotAged and land in no bucket. Current is
// only filled by AgeOutstanding for balances not yet due.
type Result struct {
	Amounts  map[Bucket]decimal.Decimal `json:"amounts"`
	Valid    bool                       `json:"valid"`
	Payments int                        `json:"payments"`
	NotAged  int                        `json:"notAged"`
}

func newResult() Result {
	amounts := make(map[Bucket]decimal.Decimal, bucketCount)
	for _, b := range Buckets {
		amounts[b] = decimal.Zero
	}
	return Result{Amounts: amounts}
}

// Get returns the amount in bucket.
func (r Result) Get(b Bucket) decimal.Decimal {
	if r.Amounts == nil {
		return decimal.Zero
	}
	return r.Amounts[b]
}

// Overdue sums every bucket except Current.
func (r Result) Overdue() decimal.Decimal {
	total := decimal.Zero
	for _, b := range Buckets[1:] {
		total = total.Add(r.Get(b))
	}
	return total
}

// Add merges other into r.
func (r Result) Add(other Result) Result {
	out := newResult()
	for _, b := range Buckets {
		out.Amounts[b] = r.Get(b).Add(other.Get(b))
	}
	out.Valid = r.Valid || other.Valid
	out.Payments = r.Payments + other.Payments
	out.NotAged = r.NotAged + other.NotAged
	return out
}

// Age buckets each payment by the days between the maturity date and the
// posting date. A nil or zero maturity yields an all-zero result and a
// warning; it is never an error.
func Age(payments []Payment, maturity *time.Time) (Result, ledger.Diagnostics) {
	res := newResult()
	if maturity == nil || maturity.IsZero() {
		var diags ledger.Diagnostics
		diags.Add(ledger.MissingMaturityDate("", ""))
		return res, diags
	}
	res.Valid = true
	for _, p := range payments {
		res.Payments++
		b := BucketFor(DaysBetween(*maturity, p.PostedAt))
		if b == Current {
			res.NotAged++
			continue
		}
		res.Amounts[b] = res.Amounts[b].Add(p.Amount)
	}
	return res, nil
}

// AgeOutstanding places an unpaid balance in the bucket for the days elapsed
// between maturity and asOf. A balance not yet past maturity is Current.
func AgeOutstanding(balance decimal.Decimal, maturity *time.Time, asOf time.Time) (Result, ledger.Diagnostics) {
	res := newResult()
	if maturity == nil || maturity.IsZero() {
		var diags ledger.Diagnostics
		diags.Add(ledger.MissingMaturityDate("", ""))
		return res, diags
	}
	res.Valid = true
	b := BucketFor(DaysBetween(*maturity, asOf))
	res.Amounts[b] = balance
	return res, nil
}

// PaymentsFromEntries turns ledger entries into payments. The amount is the
// credit minus the debit, so a reversal reduces the collected figure; the date
// is the parent transaction date.
func PaymentsFromEntries(entries []ledger.Entry, keep func(ledger.Entry) bool) []Payment {
	out := make([]Payment, 0, len(entries))
	for _, e := range entries {
		if keep != nil && !keep(e) {
			continue
		}
		out = append(out, Payment{PostedAt: e.Parent.Date, Amount: e.Credit.Sub(e.Debit)})
	}
	return out
}

// Loan is the aging input for a single (client, loan) pair.
type Loan struct {
	ClientID   string
	ClientName string
	LoanID     string
	Maturity   *time.Time
	Payments   []Payment
}

// LoanAging is the aged result of one loan.
type LoanAging struct {
	ClientID   string `json:"clientId"`
	ClientName string `json:"clientName"`
	LoanID     string `json:"loanId"`
	Result     Result `json:"result"`
}

// AgeLoans ages each (client, loan) pair in first-seen order. Duplicate
// pairs are merged; their payments age against the first maturity seen.
func AgeLoans(loans []Loan) ([]LoanAging, ledger.Diagnostics) {
	groups := grouping.GroupBy(loans, byClientLoan)
	out := make([]LoanAging, 0, len(groups))
	var diags ledger.Diagnostics
	for _, g := range groups {
		first := g.Items[0]
		var payments []Payment
		maturity := first.Maturity
		for _, l := range g.Items {
			payments = append(payments, l.Payments...)
			if maturity == nil || maturity.IsZero() {
				maturity = l.Maturity
			}
		}
		res, d := Age(payments, maturity)
		for _, diag := range d {
			diag.ClientID = first.ClientID
			diag.LoanID = first.LoanID
			diags.Add(diag)
		}
		out = append(out, LoanAging{ClientID: first.ClientID, ClientName: first.ClientName, LoanID: first.LoanID, Result: res})
	}
	return out, diags
}

// Total sums the results of many loans.
func Total(items []LoanAging) Result {
	total := newResult()
	for _, it := range items {
		total = total.Add(it.Result)
	}
	return total
}

func byClientLoan(l Loan) grouping.Key {
	client := grouping.Null()
	if l.ClientID != "" {
		client = grouping.String(l.ClientID)
	}
	loan := grouping.Null()
	if l.LoanID != "" {
		loan = grouping.String(l.LoanID)
	}
	return grouping.K(client, loan)
}
