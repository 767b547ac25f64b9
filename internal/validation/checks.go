package validation

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"vatfiling/internal/vatreturn"
	"vatfiling/pkg/models"
)

var hundred = decimal.NewFromInt(100)

// CheckPositiveAmounts checks every non-empty "amount<N>" key of a flat
// field map. A key passes when its value parses and is not negative.
func CheckPositiveAmounts(data map[string]string) map[string]bool {
	out := make(map[string]bool)
	for key, value := range data {
		if !strings.HasPrefix(key, "amount") || value == "" {
			continue
		}
		amount, ok := vatreturn.ParseStrictAmount(value)
		out[key] = ok && !amount.IsNegative()
	}
	return out
}

// VATCheck checks the VAT charged on every non-empty "amount<N>" key
// against the standard rate. Results are keyed "vatAmount<N>".
//
// Exempt lines always pass. Otherwise the line passes when the amount is
// positive, the VAT amount parses, and VAT/amount*100 lies within the
// tolerance of the standard rate. Anything else fails, including a zero
// amount on a non-exempt line.
func VATCheck(rules Rules, data map[string]string) map[string]bool {
	out := make(map[string]bool)
	for key, value := range data {
		code, ok := strings.CutPrefix(key, "amount")
		if !ok || value == "" {
			continue
		}
		vatKey := "vatAmount" + code
		if rules.IsExempt(code) {
			out[vatKey] = true
			continue
		}

		amount, amountOK := vatreturn.ParseStrictAmount(value)
		vat, vatOK := vatreturn.ParseStrictAmount(data[vatKey])
		if !amountOK || !vatOK || !amount.IsPositive() {
			out[vatKey] = false
			continue
		}

		ratio := vat.Div(amount).Mul(hundred)
		out[vatKey] = ratio.Sub(rules.standardRate).Abs().LessThanOrEqual(rules.tolerance)
	}
	return out
}

// CheckInvoiceID reports whether trn is a tax registration number of the
// configured length, digits only.
func CheckInvoiceID(rules Rules, trn string) bool {
	if len(trn) != rules.trnLength {
		return false
	}
	for _, r := range trn {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

var issueTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// ParseIssueTime parses the IssueTime header of an invoice.
func ParseIssueTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range issueTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CheckInvoiceDate reports whether issueTime falls inside period. It
// passes when the period is open or the time is missing or unreadable.
func CheckInvoiceDate(period models.DateRange, issueTime string) bool {
	if period.IsZero() || issueTime == "" {
		return true
	}
	t, ok := ParseIssueTime(issueTime)
	if !ok {
		return true
	}
	return period.Contains(t)
}
