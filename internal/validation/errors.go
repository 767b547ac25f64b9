package validation

import "errors"

var (
	// ErrInvalidRules is returned when a rules file holds unusable values.
	ErrInvalidRules = errors.New("invalid validation rules")
)

// Error categories and codes written into error records.
const (
	CategoryAmount = "Amount Check"
	CategoryVAT    = "VAT Check"

	CodeAmountNotPositive = "AMOUNT_NOT_POSITIVE"
	CodeVATCheckFailed    = "VAT_CHECK_FAILED"
)

// ErrorRecord describes one field that failed a check. Records are
// reported, never returned as Go errors.
type ErrorRecord struct {
	Category  string `json:"category"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	InvoiceID string `json:"invoiceId"`
}
