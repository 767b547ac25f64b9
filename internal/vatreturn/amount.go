package vatreturn

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a spreadsheet cell as a decimal amount. Anything that
// does not parse, including an empty cell, yields zero. It never fails.
func ParseAmount(s string) decimal.Decimal {
	d, ok := ParseStrictAmount(s)
	if !ok {
		return decimal.Zero
	}
	return d
}

// maxAmountExponent bounds the decimal exponent of a parsed amount. Cells
// such as "1e-3000000" fall outside it and do not count as numbers.
const maxAmountExponent = 20

// ParseStrictAmount parses s and reports whether it held a number.
// Thousands separators and surrounding whitespace are accepted.
func ParseStrictAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if e := d.Exponent(); e < -maxAmountExponent || e > maxAmountExponent {
		return decimal.Zero, false
	}
	return d, true
}

// FormatAmount renders an amount the way it is written into a sheet cell.
// Zero renders as an empty cell.
func FormatAmount(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}
