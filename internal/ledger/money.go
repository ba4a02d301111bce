package ledger

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DisplayPlaces is the number of decimal places shown on reports.
const DisplayPlaces = 2

// ErrInvalidAmount indicates a value that cannot be read as an amount.
var ErrInvalidAmount = errors.New("ledger: invalid amount")

var (
	displayPrinter = message.NewPrinter(language.English)
	amountPattern  = regexp.MustCompile(`^\d+(\.\d+)?$`)
	currencyMarks  = []string{"PHP", "php", "Php", "₱"}
)

// Round applies round-half-up to the display precision. Call it only when a
// figure leaves the engine.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(DisplayPlaces)
}

// Display formats an amount with thousand separators and two decimals. The
// digits come from the decimal itself, never from a float.
func Display(d decimal.Decimal) string {
	fixed := Round(d).StringFixed(DisplayPlaces)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		// Whole part beyond int64; printed ungrouped.
		return sign + fixed
	}
	return sign + displayPrinter.Sprint(number.Decimal(n)) + "." + frac
}

// ValueOrZero dereferences an optional amount.
func ValueOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// ParseAmount reads user or store formatted amounts such as "10,000",
// "PHP 1,234.50" or "-₱500". A single leading currency mark and comma
// thousand separators are accepted; anything else is ErrInvalidAmount.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(s[1:])
	}
	for _, mark := range currencyMarks {
		if strings.HasPrefix(s, mark) {
			s = strings.TrimSpace(strings.TrimPrefix(s, mark))
			break
		}
	}
	if !neg && strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(s[1:])
	}
	s = strings.ReplaceAll(s, ",", "")
	if !amountPattern.MatchString(s) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if neg {
		s = "-" + s
	}
	val, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return val, nil
}
