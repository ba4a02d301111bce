package classify

import (
	"sort"
	"strings"

	"github.com/odyssey-erp/microfin/internal/ledger"
)

// BucketSet is a sorted set of bucket names.
type BucketSet []Bucket

// Has reports membership.
func (s BucketSet) Has(b Bucket) bool {
	for _, x := range s {
		if x == b {
			return true
		}
	}
	return false
}

// Classifier answers bucket membership for one table. It is immutable and safe
// for concurrent use.
type Classifier struct {
	table   Table
	byCode  map[string]BucketSet
	byBuck  map[Bucket]map[string]struct{}
	ordered []Bucket
}

// NewClassifier validates the table and indexes it by code.
func NewClassifier(t Table) (*Classifier, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	c := &Classifier{
		table:  t,
		byCode: make(map[string]BucketSet),
		byBuck: make(map[Bucket]map[string]struct{}, len(t.Buckets)),
	}
	for bucket, codes := range t.Buckets {
		set := make(map[string]struct{}, len(codes))
		for _, code := range codes {
			code = strings.TrimSpace(code)
			set[code] = struct{}{}
			c.byCode[code] = append(c.byCode[code], bucket)
		}
		c.byBuck[bucket] = set
		c.ordered = append(c.ordered, bucket)
	}
	for code := range c.byCode {
		sort.Slice(c.byCode[code], func(i, j int) bool { return c.byCode[code][i] < c.byCode[code][j] })
	}
	sort.Slice(c.ordered, func(i, j int) bool { return c.ordered[i] < c.ordered[j] })
	return c, nil
}

// Table returns the configuration backing the classifier.
func (c *Classifier) Table() Table { return c.table }

// Buckets lists the explicit buckets in name order.
func (c *Classifier) Buckets() []Bucket {
	return append([]Bucket(nil), c.ordered...)
}

// Classify returns the buckets containing code. Codes absent from every
// bucket belong to the implicit misc bucket.
func (c *Classifier) Classify(code string) BucketSet {
	if set, ok := c.byCode[strings.TrimSpace(code)]; ok {
		return append(BucketSet(nil), set...)
	}
	return BucketSet{BucketMisc}
}

// Known reports whether the table lists code under any bucket.
func (c *Classifier) Known(code string) bool {
	_, ok := c.byCode[strings.TrimSpace(code)]
	return ok
}

// Is reports whether code belongs to bucket.
func (c *Classifier) Is(code string, bucket Bucket) bool {
	if bucket == BucketMisc {
		return !c.Known(code)
	}
	_, ok := c.byBuck[bucket][strings.TrimSpace(code)]
	return ok
}

// Codes returns the codes listed under bucket, sorted.
func (c *Classifier) Codes(bucket Bucket) []string {
	out := make([]string, 0, len(c.byBuck[bucket]))
	for code := range c.byBuck[bucket] {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Polarity returns the sign configured for a transaction kind.
func (c *Classifier) Polarity(kind ledger.TransactionKind) (int, bool) {
	p, ok := c.table.Polarity[kind]
	return p, ok
}

// Tagged pairs an entry with its buckets.
type Tagged struct {
	ledger.Entry
	Buckets BucketSet
}

// Tag classifies entries, reporting each unknown code once.
func (c *Classifier) Tag(entries []ledger.Entry) ([]Tagged, ledger.Diagnostics) {
	out := make([]Tagged, len(entries))
	var diags ledger.Diagnostics
	reported := make(map[string]struct{})
	for i, e := range entries {
		out[i] = Tagged{Entry: e, Buckets: c.Classify(e.AccountCode.Code)}
		if !c.Known(e.AccountCode.Code) {
			if _, done := reported[e.AccountCode.Code]; !done {
				reported[e.AccountCode.Code] = struct{}{}
				diags.Add(ledger.UnclassifiedCode(e.AccountCode.Code))
			}
		}
	}
	return out, diags
}

// BucketTotals holds debit/credit sums per bucket.
type BucketTotals map[Bucket]ledger.Totals

// Get returns the totals for a bucket, zero when absent.
func (b BucketTotals) Get(bucket Bucket) ledger.Totals {
	return b[bucket]
}

// SumByBucket totals entries per bucket. An entry in several buckets
// contributes to each; unclassified entries are summed into misc.
func (c *Classifier) SumByBucket(entries []ledger.Entry) (BucketTotals, ledger.Diagnostics) {
	tagged, diags := c.Tag(entries)
	out := make(BucketTotals)
	for _, t := range tagged {
		for _, b := range t.Buckets {
			out[b] = out[b].AddEntry(t.Debit, t.Credit)
		}
	}
	return out, diags
}

// Filter returns the entries whose code belongs to bucket, in input order.
func (c *Classifier) Filter(entries []ledger.Entry, bucket Bucket) []ledger.Entry {
	var out []ledger.Entry
	for _, e := range entries {
		if c.Is(e.AccountCode.Code, bucket) {
			out = append(out, e)
		}
	}
	return out
}
