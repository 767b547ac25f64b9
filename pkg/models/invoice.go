package models

import "time"

// InvoiceStatus tracks the last validation outcome of an invoice.
type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "pending"
	InvoiceValidated InvoiceStatus = "validated"
	InvoiceFailed    InvoiceStatus = "failed"
)

type Invoice struct {
	// Core identifiers
	InvoiceID  string `json:"invoiceId"`
	BusinessID string `json:"businessId"` // TRN of the filing business

	// Object storage
	ObjectKey   string `json:"objectKey"`             // URL of the current upload
	ObjectKeyV1 string `json:"objectKeyV1,omitempty"` // URL of the upload it replaced

	// Status
	Status    InvoiceStatus `json:"status"`
	IsUpdated bool          `json:"isUpdated"` // set once the invoice has been re-uploaded

	CreatedOn time.Time `json:"createdOn"`
}

// HasPreviousVersion reports whether both uploads needed for a diff exist.
func (i *Invoice) HasPreviousVersion() bool {
	return i.ObjectKey != "" && i.ObjectKeyV1 != ""
}
