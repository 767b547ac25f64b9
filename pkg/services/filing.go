package services

import (
	"context"

	"vatfiling/internal/filing"
	"vatfiling/internal/validation"
	"vatfiling/internal/vatreturn"
	"vatfiling/pkg/models"
)

var _ FilingService = (*filing.Service)(nil)

// FilingService defines the operations behind the filing and invoice
// commands.
type FilingService interface {
	// CreateFiling opens a Draft filing over a set of invoices
	CreateFiling(ctx context.Context, businessID string, invoiceIDs []string, period models.DateRange) (*models.Filing, error)
	GetFiling(ctx context.Context, vatID string) (*models.Filing, error)
	// ListFilings returns one page of filings, newest first
	ListFilings(ctx context.Context, page, size int) (*models.FilingPage, error)

	// RegisterInvoice records an invoice whose workbook already lives in
	// object storage or a Google Sheet
	RegisterInvoice(ctx context.Context, inv *models.Invoice) error
	// UploadInvoice stores a workbook and makes it the current version
	UploadInvoice(ctx context.Context, invoiceID, fileName string, data []byte) (*models.Invoice, error)

	ValidateFiling(ctx context.Context, vatID string) (*validation.Result, error)
	ValidateInvoice(ctx context.Context, invoiceID string) (*validation.Result, error)
	// InvoiceErrors renders the plain-text error report of one invoice
	InvoiceErrors(ctx context.Context, invoiceID string) (string, error)

	AggregateFiling(ctx context.Context, vatID string) (*filing.Summary, error)
	Totals(ctx context.Context, vatID string) (*vatreturn.Document, error)

	// InvoiceDiff compares the two latest versions of an invoice
	InvoiceDiff(ctx context.Context, invoiceID string) (*filing.DiffOutcome, error)

	RemoveFailedInvoice(ctx context.Context, vatID, invoiceID string) (*models.Filing, error)
	MarkFiled(ctx context.Context, vatID string) (*models.Filing, error)
}
