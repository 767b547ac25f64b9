package validation

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"vatfiling/internal/logger"
	"vatfiling/internal/vatreturn"
	"vatfiling/pkg/models"
)

// Validator runs the positivity and rate checks over canonical returns.
type Validator struct {
	rules Rules
	log   zerolog.Logger
}

// NewValidator creates a validator bound to rules.
func NewValidator(rules Rules) *Validator {
	return &Validator{
		rules: rules,
		log:   logger.WithComponent("vat-validator"),
	}
}

// Rules returns the rules the validator checks against.
func (v *Validator) Rules() Rules {
	return v.rules
}

// Subject is one invoice handed to the validator.
type Subject struct {
	InvoiceID  string
	BusinessID string
	Document   *vatreturn.Document
}

// InvoiceResult is the outcome for one invoice.
type InvoiceResult struct {
	ID          string        `json:"id"`
	IsValidated bool          `json:"isValidated"`
	Errors      []ErrorRecord `json:"error"`
	// Warnings lists total lines that do not add up. They never fail the
	// invoice.
	Warnings []string `json:"warnings,omitempty"`

	businessID string
	issueTime  string
}

// CheckList summarises the filing-level checks.
type CheckList struct {
	Check1 bool `json:"check1"` // no VAT_CHECK_FAILED records
	Check2 bool `json:"check2"` // no AMOUNT_NOT_POSITIVE records
	Check3 bool `json:"check3"` // every known TRN is well formed
	Check4 bool `json:"check4"` // every known issue date is inside the period
	Check5 bool `json:"check5"` // single-invoice validation
}

// Result is the validation outcome for a batch of invoices.
type Result struct {
	Invoices               []InvoiceResult   `json:"invoices"`
	GeneralStatus          bool              `json:"generalStatus"`
	TotalErrors            int               `json:"totalErrors"`
	TotalInvoiceWithErrors int               `json:"totalInvoiceWithErrors"`
	CheckList              CheckList         `json:"checkList"`
	FailedInvoices         []string          `json:"failedInvoices"`
	Errors                 map[string]string `json:"errors,omitempty"`
}

// Options tune how a batch result is compiled.
type Options struct {
	Period models.DateRange
	Single bool
}

// ValidateInvoice checks one invoice. Errors come back in flat-key order,
// positivity failures first.
func (v *Validator) ValidateInvoice(s Subject) InvoiceResult {
	log := logger.WithInvoice(v.log, s.InvoiceID)

	data := vatreturn.Flatten(s.Document)
	positive := CheckPositiveAmounts(data)
	rate := VATCheck(v.rules, data)

	result := InvoiceResult{
		ID:         s.InvoiceID,
		Errors:     []ErrorRecord{},
		businessID: s.BusinessID,
	}
	if s.Document != nil {
		result.issueTime = s.Document.Header[vatreturn.HeaderIssueTime]
	}

	for _, key := range failedKeys(positive) {
		result.Errors = append(result.Errors, ErrorRecord{
			Category:  CategoryAmount,
			Code:      CodeAmountNotPositive,
			Message:   key + " must be positive",
			InvoiceID: s.InvoiceID,
		})
	}
	for _, key := range failedKeys(rate) {
		result.Errors = append(result.Errors, ErrorRecord{
			Category:  CategoryVAT,
			Code:      CodeVATCheckFailed,
			Message:   key + " validation failed",
			InvoiceID: s.InvoiceID,
		})
	}
	result.IsValidated = len(result.Errors) == 0

	if s.Document != nil {
		for _, m := range vatreturn.CheckTotals(s.Document) {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s.%s: expected %s, got %s",
				m.Line, m.Field, m.Expected, m.Actual))
		}
	}

	log.Debug().
		Int("errors", len(result.Errors)).
		Int("warnings", len(result.Warnings)).
		Bool("is_validated", result.IsValidated).
		Msg("Invoice validated")

	return result
}

// Compile folds per-invoice results and fetch failures into one batch
// result. failures maps an invoice id to the reason it could not be
// validated at all.
func (v *Validator) Compile(invoices []InvoiceResult, failures map[string]error, opts Options) *Result {
	result := &Result{
		Invoices:       invoices,
		FailedInvoices: []string{},
		CheckList: CheckList{
			Check1: true,
			Check2: true,
			Check3: true,
			Check4: true,
			Check5: opts.Single,
		},
	}
	if result.Invoices == nil {
		result.Invoices = []InvoiceResult{}
	}

	for _, inv := range invoices {
		result.TotalErrors += len(inv.Errors)
		if len(inv.Errors) > 0 {
			result.TotalInvoiceWithErrors++
			result.FailedInvoices = append(result.FailedInvoices, inv.ID)
		}
		for _, rec := range inv.Errors {
			switch rec.Code {
			case CodeVATCheckFailed:
				result.CheckList.Check1 = false
			case CodeAmountNotPositive:
				result.CheckList.Check2 = false
			}
		}
		if inv.businessID != "" && !CheckInvoiceID(v.rules, inv.businessID) {
			result.CheckList.Check3 = false
		}
		if !CheckInvoiceDate(opts.Period, inv.issueTime) {
			result.CheckList.Check4 = false
		}
	}

	if len(failures) > 0 {
		result.Errors = make(map[string]string, len(failures))
		ids := make([]string, 0, len(failures))
		for id, err := range failures {
			result.Errors[id] = err.Error()
			ids = append(ids, id)
		}
		sort.Strings(ids)
		result.FailedInvoices = append(result.FailedInvoices, ids...)
	}

	result.GeneralStatus = result.TotalInvoiceWithErrors == 0 && len(failures) == 0

	v.log.Info().
		Int("invoices", len(invoices)).
		Int("fetch_failures", len(failures)).
		Int("total_errors", result.TotalErrors).
		Bool("general_status", result.GeneralStatus).
		Msg("Validation result compiled")

	return result
}

// failedKeys returns the failing keys of a check result in flat-key order.
func failedKeys(results map[string]bool) []string {
	var keys []string
	for key, ok := range results {
		if !ok {
			keys = append(keys, key)
		}
	}
	vatreturn.SortFlatKeys(keys)
	return keys
}
