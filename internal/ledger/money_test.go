package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"20000", "20000"},
		{"20,000", "20000"},
		{"PHP 20,000", "20000"},
		{"PHP -20,000", "-20000"},
		{"  ₱1,234.50  ", "1234.5"},
		{"-₱500", "-500"},
		{"1000.00", "1000"},
	}
	for _, tc := range cases {
		d, err := ParseAmount(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.expected, d.String(), tc.in)
	}
	for _, in := range []string{"", "PHP", "1.5e3", "12abc34", "5-3", "N/A 7", "1.", ".5", "--5", "PHP 1 000", "12PHP34"} {
		_, err := ParseAmount(in)
		require.ErrorIs(t, err, ErrInvalidAmount, in)
	}
}

func TestRoundHalfUp(t *testing.T) {
	require.Equal(t, "0.13", Round(decimal.RequireFromString("0.125")).String())
	require.Equal(t, "627.5", Round(decimal.RequireFromString("627.5")).String())
	require.Equal(t, "1,234.57", Display(decimal.RequireFromString("1234.565")))
}

func TestDisplayKeepsCents(t *testing.T) {
	require.Equal(t, "9,999,999,999,999,999.99", Display(decimal.RequireFromString("9999999999999999.99")))
	require.Equal(t, "-0.50", Display(decimal.RequireFromString("-0.5")))
	require.Equal(t, "0.00", Display(decimal.Zero))
	require.Equal(t, "-1,000.10", Display(decimal.RequireFromString("-1000.1")))
}

func TestTotals(t *testing.T) {
	a := Totals{Debit: decimal.NewFromInt(10), Credit: decimal.NewFromInt(4)}
	b := a.Add(Totals{Debit: decimal.NewFromInt(1), Credit: decimal.NewFromInt(1)})
	require.Equal(t, "11", b.Debit.String())
	require.Equal(t, "6", b.Net().String())
	require.True(t, b.Equal(Totals{Debit: decimal.NewFromInt(11), Credit: decimal.NewFromInt(5)}))
}
