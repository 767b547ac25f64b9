package models

import (
	"time"
)

// FilingStatus is the lifecycle state of a VAT filing.
type FilingStatus string

const (
	FilingDraft     FilingStatus = "Draft"
	FilingValidated FilingStatus = "Validated"
	FilingFiled     FilingStatus = "Filed"
)

// CanTransition reports whether a filing may move from s to next.
// Draft and Validated move freely between each other, Validated moves on
// to Filed, and Filed is terminal.
func (s FilingStatus) CanTransition(next FilingStatus) bool {
	switch s {
	case FilingDraft:
		return next == FilingDraft || next == FilingValidated
	case FilingValidated:
		return next == FilingDraft || next == FilingValidated || next == FilingFiled
	default:
		return false
	}
}

// IsOpen reports whether the filing can still change.
func (s FilingStatus) IsOpen() bool {
	return s != FilingFiled
}

// DateRange is the tax period a filing covers. Both ends are inclusive
// days; a zero bound is open.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// IsZero reports whether neither bound is set.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Contains reports whether t falls on a day inside the range.
func (r DateRange) Contains(t time.Time) bool {
	day := truncateDay(t)
	if !r.Start.IsZero() && day.Before(truncateDay(r.Start)) {
		return false
	}
	if !r.End.IsZero() && day.After(truncateDay(r.End)) {
		return false
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type Filing struct {
	VatID      string    `json:"vatId"` // 15 digits
	BusinessID string    `json:"businessId"`
	DateRange  DateRange `json:"dateRange"`

	Invoices       []string `json:"invoices"`
	FailedInvoices []string `json:"failedInvoices"`

	// ObjectKey is the URL of the last aggregate export, if any.
	ObjectKey string       `json:"objectKey,omitempty"`
	Status    FilingStatus `json:"status"`
	CreatedOn time.Time    `json:"createdOn"`
}

// HasInvoice reports whether invoiceID is part of the filing.
func (f *Filing) HasInvoice(invoiceID string) bool {
	for _, id := range f.Invoices {
		if id == invoiceID {
			return true
		}
	}
	return false
}
