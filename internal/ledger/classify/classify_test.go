package classify

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/microfin/internal/ledger"
	_ "github.com/odyssey-erp/microfin/testing"
)

const tableYAML = `
version: "2024.1"
buckets:
  principal: ["2010A"]
  contraPrincipal: ["2010A", "2010R"]
  interest: ["4052", "2010B"]
  bank: ["1010", "1020"]
  unityFund: ["2030"]
polarity:
  loan_release: 1
  journal_voucher: -1
  expense_voucher: -1
`

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	table, err := ParseTable(strings.NewReader(tableYAML))
	require.NoError(t, err)
	c, err := NewClassifier(table)
	require.NoError(t, err)
	return c
}

func TestClassify(t *testing.T) {
	c := newTestClassifier(t)
	require.Equal(t, BucketSet{"contraPrincipal", BucketPrincipal}, c.Classify("2010A"))
	require.Equal(t, BucketSet{BucketInterest}, c.Classify("2010B"))
	require.Equal(t, BucketSet{BucketMisc}, c.Classify("7777"))
	require.True(t, c.Is("7777", BucketMisc))
	require.False(t, c.Is("1010", BucketMisc))
	require.Equal(t, []string{"1010", "1020"}, c.Codes(BucketBank))

	p, ok := c.Polarity(ledger.KindJournalVoucher)
	require.True(t, ok)
	require.Equal(t, -1, p)
}

func entry(code string, debit, credit int64) ledger.Entry {
	return ledger.Entry{
		AccountCode: ledger.AccountCode{Code: code},
		Debit:       decimal.NewFromInt(debit),
		Credit:      decimal.NewFromInt(credit),
	}
}

func TestSumByBucketMiscFallback(t *testing.T) {
	c := newTestClassifier(t)
	entries := []ledger.Entry{
		entry("2010A", 0, 1000),
		entry("4052", 0, 200),
		entry("1010", 1300, 0),
		entry("6001", 0, 50),
		entry("6001", 0, 50),
		entry("6002", 10, 0),
	}
	totals, diags := c.SumByBucket(entries)
	require.Equal(t, "1000", totals.Get(BucketPrincipal).Credit.String())
	require.Equal(t, "1000", totals.Get("contraPrincipal").Credit.String())
	require.Equal(t, "200", totals.Get(BucketInterest).Credit.String())
	require.Equal(t, "1300", totals.Get(BucketBank).Debit.String())
	require.Equal(t, "100", totals.Get(BucketMisc).Credit.String())
	require.Equal(t, "10", totals.Get(BucketMisc).Debit.String())

	require.Len(t, diags, 2)
	require.Equal(t, ledger.DiagUnclassifiedCode, diags[0].Kind)
	require.Equal(t, "6001", diags[0].AccountCode)
	require.Equal(t, "6002", diags[1].AccountCode)
	require.Equal(t, ledger.SeverityInfo, diags[0].Severity)
}

func TestFilter(t *testing.T) {
	c := newTestClassifier(t)
	got := c.Filter([]ledger.Entry{entry("1010", 1, 0), entry("2010A", 0, 1), entry("1020", 2, 0)}, BucketBank)
	require.Len(t, got, 2)
	require.Equal(t, "1020", got[1].AccountCode.Code)
}

func TestTableValidation(t *testing.T) {
	_, err := ParseTable(strings.NewReader("version: v1\nbuckets:\n  misc: [\"1\"]\n"))
	require.ErrorIs(t, err, ErrMiscDeclared)

	_, err = ParseTable(strings.NewReader("buckets:\n  bank: [\"1\"]\n"))
	require.ErrorIs(t, err, ErrInvalidTable)

	_, err = ParseTable(strings.NewReader("version: v1\nbuckets:\n  bank: [\"1\", \"1\"]\n"))
	require.ErrorIs(t, err, ErrInvalidTable)

	_, err = ParseTable(strings.NewReader("version: v1\nbuckets:\n  bank: [\"1\"]\npolarity:\n  loan_release: 2\n"))
	require.ErrorIs(t, err, ErrInvalidTable)

	_, err = ParseTable(strings.NewReader("version: v1\nbuckets:\n  bank: [\"1\"]\nextra: true\n"))
	require.Error(t, err)
}

func TestFingerprintStable(t *testing.T) {
	a := Table{Version: "v1", Buckets: map[Bucket][]string{"bank": {"1020", "1010"}, "interest": {"4052"}}}
	b := Table{Version: "v1", Buckets: map[Bucket][]string{"interest": {"4052"}, "bank": {"1010", "1020"}}}
	require.Equal(t, a.Fingerprint(), b.Fingerprint())
	b.Version = "v2"
	require.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
