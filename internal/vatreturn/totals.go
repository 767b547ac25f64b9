package vatreturn

import "github.com/shopspring/decimal"

// TotalsTolerance is the rounding slack allowed between a total line and
// the lines it sums.
var TotalsTolerance = decimal.RequireFromString("0.01")

// TotalMismatch records a total line that does not match its parts.
type TotalMismatch struct {
	Line     string
	Field    SubField
	Expected decimal.Decimal
	Actual   decimal.Decimal
}

// CheckTotals verifies that line 8 sums lines 1a to 7, line 11 sums lines
// 9 and 10, and line 14 equals line 12 minus line 13.
func CheckTotals(doc *Document) []TotalMismatch {
	var out []TotalMismatch

	check := func(line string, f SubField, expected decimal.Decimal) {
		actual := amountOf(doc, line, f)
		if actual.Sub(expected).Abs().GreaterThan(TotalsTolerance) {
			out = append(out, TotalMismatch{Line: line, Field: f, Expected: expected, Actual: actual})
		}
	}

	for _, f := range []SubField{FieldAmount, FieldVAT, FieldAdjustment} {
		sum := decimal.Zero
		for _, l := range LinesIn(SectionSales) {
			if l.Key != LineSalesTotals {
				sum = sum.Add(amountOf(doc, l.Key, f))
			}
		}
		check(LineSalesTotals, f, sum)
	}

	for _, f := range []SubField{FieldAmount, FieldRecoverable, FieldAdjustment} {
		sum := amountOf(doc, LineStandardExpenses, f).Add(amountOf(doc, LineReverseChargeInput, f))
		check(LineExpenseTotals, f, sum)
	}

	check(LinePayableTax, FieldAmount,
		amountOf(doc, LineDueTax, FieldAmount).Sub(amountOf(doc, LineRecoverableTax, FieldAmount)))

	return out
}

func amountOf(doc *Document, line string, f SubField) decimal.Decimal {
	item, ok := doc.Line(line)
	if !ok {
		return decimal.Zero
	}
	return item[f]
}
