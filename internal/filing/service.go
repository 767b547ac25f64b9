// Package filing runs the VAT filing lifecycle: collecting invoices into a
// filing, validating and aggregating them, and tracking rectified invoice
// versions.
//
// Invoices are fetched through a RowSource and mapped into canonical
// returns. Batch operations fan out over a bounded worker pool; a failure
// to fetch one invoice is recorded against that invoice and never aborts
// the batch.
package filing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vatfiling/internal/aggregate"
	"vatfiling/internal/diff"
	"vatfiling/internal/logger"
	"vatfiling/internal/objectstore"
	"vatfiling/internal/validation"
	"vatfiling/internal/vatreturn"
	"vatfiling/internal/xlsx"
	"vatfiling/pkg/models"
)

// RowSource fetches the spreadsheet rows stored under a reference.
type RowSource interface {
	Rows(ctx context.Context, ref string) ([]vatreturn.Row, error)
}

// Options tune a Service.
type Options struct {
	// Workers bounds concurrent invoice fetches. Default: 12.
	Workers int

	// ReportFormat is the format of invoice change reports. Default: xlsx.
	ReportFormat diff.Format

	// Now replaces the wall clock in tests.
	Now func() time.Time
}

// Summary is the aggregate of a filing.
type Summary struct {
	VatID         string              `json:"vatId"`
	Document      *vatreturn.Document `json:"data"`
	Status        models.FilingStatus `json:"status"`
	TotalInvoices int                 `json:"totalInvoices"`
	// ObjectKey is the URL of the exported aggregate workbook.
	ObjectKey string            `json:"objectKey"`
	Errors    map[string]string `json:"errors"`
}

// DiffOutcome reports the comparison of an invoice's two latest versions.
// Data holds the report URL, or nil when nothing changed.
type DiffOutcome struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Data    *string        `json:"data"`
	Changes diff.ChangeSet `json:"changes,omitempty"`
}

// Service orchestrates filings over a Store, an object store and a row
// source.
type Service struct {
	store     Store
	objects   objectstore.Store
	source    RowSource
	mapper    *vatreturn.Mapper
	validator *validation.Validator
	workers   int
	format    diff.Format
	now       func() time.Time
	log       zerolog.Logger
}

// NewService creates a filing service.
func NewService(store Store, objects objectstore.Store, source RowSource, mapper *vatreturn.Mapper, validator *validation.Validator, opts Options) *Service {
	if opts.Workers < 1 {
		opts.Workers = 12
	}
	if opts.ReportFormat == "" {
		opts.ReportFormat = diff.FormatXLSX
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		store:     store,
		objects:   objects,
		source:    source,
		mapper:    mapper,
		validator: validator,
		workers:   opts.Workers,
		format:    opts.ReportFormat,
		now:       opts.Now,
		log:       logger.WithComponent("filing"),
	}
}

// CreateFiling opens a Draft filing over invoiceIDs.
func (s *Service) CreateFiling(ctx context.Context, businessID string, invoiceIDs []string, period models.DateRange) (*models.Filing, error) {
	const op = "CreateFiling"

	ids := uniqueIDs(invoiceIDs)
	if len(ids) == 0 {
		return nil, NewFilingError(op, "", ErrNoInvoices)
	}

	f := &models.Filing{
		BusinessID:     businessID,
		DateRange:      period,
		Invoices:       ids,
		FailedInvoices: []string{},
		Status:         models.FilingDraft,
		CreatedOn:      s.now().UTC(),
	}

	// The random half of the id makes a clash unlikely, not impossible.
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		f.VatID = NewVatID(s.now())
		if err = s.store.CreateFiling(ctx, f); !errors.Is(err, ErrAlreadyExists) {
			break
		}
	}
	if err != nil {
		return nil, NewFilingError(op, f.VatID, err)
	}

	flog := logger.WithFiling(s.log, f.VatID)
	flog.Info().
		Int("invoices", len(ids)).
		Str("business_id", businessID).
		Msg("Filing created")

	return f, nil
}

// GetFiling returns the filing vatID.
func (s *Service) GetFiling(ctx context.Context, vatID string) (*models.Filing, error) {
	f, err := s.store.GetFiling(ctx, vatID)
	if err != nil {
		return nil, NewFilingError("GetFiling", vatID, err)
	}
	return f, nil
}

// ListFilings returns page (1-based) of the filings, newest first.
func (s *Service) ListFilings(ctx context.Context, page, size int) (*models.FilingPage, error) {
	const op = "ListFilings"

	if page < 1 || size < 1 {
		return nil, NewFilingError(op, "", fmt.Errorf("%w: page %d, size %d", ErrInvalidPage, page, size))
	}

	window := models.Pagination{Current: page, Size: size}
	filings, total, err := s.store.ListFilings(ctx, window.Offset(), size)
	if err != nil {
		return nil, NewFilingError(op, "", err)
	}

	return &models.FilingPage{
		Data:       filings,
		Pagination: models.NewPagination(total, page, size),
	}, nil
}

// RegisterInvoice records an invoice whose file already lives at
// inv.ObjectKey. Registering a different ObjectKey for a known invoice
// records a new version.
func (s *Service) RegisterInvoice(ctx context.Context, inv *models.Invoice) error {
	const op = "RegisterInvoice"

	if inv.InvoiceID == "" {
		return NewFilingError(op, "", fmt.Errorf("invoice id is required"))
	}

	existing, err := s.store.GetInvoice(ctx, inv.InvoiceID)
	switch {
	case errors.Is(err, ErrNotFound):
		record := *inv
		if record.Status == "" {
			record.Status = models.InvoicePending
		}
		if record.CreatedOn.IsZero() {
			record.CreatedOn = s.now().UTC()
		}
		err = s.store.SaveInvoice(ctx, &record)
	case err != nil:
	default:
		if inv.BusinessID != "" {
			existing.BusinessID = inv.BusinessID
		}
		if inv.ObjectKey != "" && inv.ObjectKey != existing.ObjectKey {
			nextVersion(existing, inv.ObjectKey)
		}
		err = s.store.SaveInvoice(ctx, existing)
	}
	if err != nil {
		return NewFilingError(op, inv.InvoiceID, err)
	}
	return nil
}

// UploadInvoice stores a new version of an invoice workbook and returns
// the updated invoice record.
func (s *Service) UploadInvoice(ctx context.Context, invoiceID, fileName string, data []byte) (*models.Invoice, error) {
	const op = "UploadInvoice"

	if invoiceID == "" {
		return nil, NewFilingError(op, "", fmt.Errorf("invoice id is required"))
	}

	url, err := s.objects.Put(ctx, objectstore.UploadName(fileName), data)
	if err != nil {
		return nil, NewFilingError(op, invoiceID, err)
	}

	inv, err := s.store.GetInvoice(ctx, invoiceID)
	switch {
	case errors.Is(err, ErrNotFound):
		inv = &models.Invoice{
			InvoiceID: invoiceID,
			ObjectKey: url,
			Status:    models.InvoicePending,
			CreatedOn: s.now().UTC(),
		}
	case err != nil:
		return nil, NewFilingError(op, invoiceID, err)
	default:
		nextVersion(inv, url)
	}

	if err := s.store.SaveInvoice(ctx, inv); err != nil {
		return nil, NewFilingError(op, invoiceID, err)
	}

	flog := logger.WithInvoice(s.log, invoiceID)
	flog.Info().
		Str("url", url).
		Bool("is_updated", inv.IsUpdated).
		Msg("Invoice uploaded")

	return inv, nil
}

// nextVersion makes url the current version of inv, keeping the one it
// replaces for comparison.
func nextVersion(inv *models.Invoice, url string) {
	inv.ObjectKeyV1 = inv.ObjectKey
	inv.ObjectKey = url
	inv.IsUpdated = true
	inv.Status = models.InvoicePending
}

// ValidateFiling validates every invoice of a filing and moves the filing
// to Validated when all of them pass, or back to Draft otherwise.
func (s *Service) ValidateFiling(ctx context.Context, vatID string) (*validation.Result, error) {
	const op = "ValidateFiling"

	log := logger.WithFiling(s.log, vatID)

	f, err := s.store.GetFiling(ctx, vatID)
	if err != nil {
		return nil, NewFilingError(op, vatID, err)
	}
	if !f.Status.IsOpen() {
		return nil, NewFilingError(op, vatID, fmt.Errorf("%w: filing is %s", ErrInvalidTransition, f.Status))
	}

	log.Info().Int("invoices", len(f.Invoices)).Int("workers", s.workers).Msg("Validating filing")

	fetched := s.fetchInParallel(ctx, f.Invoices)
	invoices, failures := s.validateFetched(ctx, fetched, f.BusinessID)
	result := s.validator.Compile(invoices, failures, validation.Options{Period: f.DateRange})

	next := models.FilingDraft
	if result.GeneralStatus {
		next = models.FilingValidated
	}
	f.FailedInvoices = result.FailedInvoices
	f.Status = next
	if err := s.store.UpdateFiling(ctx, f); err != nil {
		return nil, NewFilingError(op, vatID, err)
	}

	log.Info().
		Str("status", string(next)).
		Int("failed_invoices", len(result.FailedInvoices)).
		Int("total_errors", result.TotalErrors).
		Msg("Filing validated")

	return result, nil
}

// ValidateInvoice validates one invoice on its own.
func (s *Service) ValidateInvoice(ctx context.Context, invoiceID string) (*validation.Result, error) {
	fetched := s.fetchInParallel(ctx, []string{invoiceID})
	if err := ctx.Err(); err != nil {
		return nil, NewFilingError("ValidateInvoice", invoiceID, err)
	}
	invoices, failures := s.validateFetched(ctx, fetched, "")
	return s.validator.Compile(invoices, failures, validation.Options{Single: true}), nil
}

// validateFetched validates the invoices that were fetched and records
// their outcome; the rest become failures.
func (s *Service) validateFetched(ctx context.Context, fetched []fetchResult, businessID string) ([]validation.InvoiceResult, map[string]error) {
	var (
		invoices []validation.InvoiceResult
		failures = make(map[string]error)
	)
	for _, r := range fetched {
		if r.Err != nil {
			failures[r.InvoiceID] = r.Err
			continue
		}

		subject := validation.Subject{
			InvoiceID:  r.InvoiceID,
			BusinessID: r.Invoice.BusinessID,
			Document:   r.Document,
		}
		if subject.BusinessID == "" {
			subject.BusinessID = businessID
		}
		res := s.validator.ValidateInvoice(subject)
		invoices = append(invoices, res)

		r.Invoice.Status = models.InvoiceValidated
		if !res.IsValidated {
			r.Invoice.Status = models.InvoiceFailed
		}
		if err := s.store.SaveInvoice(ctx, r.Invoice); err != nil {
			flog := logger.WithInvoice(s.log, r.InvoiceID)
			flog.Warn().Err(err).Msg("Failed to record invoice status")
		}
	}
	return invoices, failures
}

// InvoiceErrors renders the plain-text error report of one invoice.
func (s *Service) InvoiceErrors(ctx context.Context, invoiceID string) (string, error) {
	const op = "InvoiceErrors"

	r := s.fetchInvoice(ctx, invoiceID)
	if r.Err != nil {
		return "", NewFilingError(op, invoiceID, r.Err)
	}

	res := s.validator.ValidateInvoice(validation.Subject{
		InvoiceID:  invoiceID,
		BusinessID: r.Invoice.BusinessID,
		Document:   r.Document,
	})
	meta := validation.ReportMeta{
		InvoiceID:   invoiceID,
		GeneratedBy: r.Document.Header[vatreturn.HeaderGeneratedBy],
		GeneratedOn: r.Document.Header[vatreturn.HeaderGeneratedOn],
	}
	return validation.ErrorReport(meta, res.Errors), nil
}

// AggregateFiling sums the invoices of a filing that could be fetched,
// stores the totals and exports them as a workbook.
func (s *Service) AggregateFiling(ctx context.Context, vatID string) (*Summary, error) {
	const op = "AggregateFiling"

	log := logger.WithFiling(s.log, vatID)

	f, err := s.store.GetFiling(ctx, vatID)
	if err != nil {
		return nil, NewFilingError(op, vatID, err)
	}

	fetched := s.fetchInParallel(ctx, f.Invoices)
	docs := make([]*vatreturn.Document, 0, len(fetched))
	errs := make(map[string]string)
	for _, r := range fetched {
		if r.Err != nil {
			errs[r.InvoiceID] = r.Err.Error()
			continue
		}
		docs = append(docs, r.Document)
	}

	total := aggregate.AggregateAmounts(docs)
	if err := s.store.SaveTotals(ctx, vatID, total); err != nil {
		return nil, NewFilingError(op, vatID, err)
	}

	data, err := xlsx.Encode(s.mapper.ToRows(total), "")
	if err != nil {
		return nil, NewFilingError(op, vatID, err)
	}
	url, err := s.objects.Put(ctx, vatID+"-aggregate.xlsx", data)
	if err != nil {
		return nil, NewFilingError(op, vatID, err)
	}
	f.ObjectKey = url
	if err := s.store.UpdateFiling(ctx, f); err != nil {
		return nil, NewFilingError(op, vatID, err)
	}

	log.Info().
		Int("aggregated", len(docs)).
		Int("failed", len(errs)).
		Str("url", url).
		Msg("Filing aggregated")

	return &Summary{
		VatID:         vatID,
		Document:      total,
		Status:        f.Status,
		TotalInvoices: len(f.Invoices),
		ObjectKey:     url,
		Errors:        errs,
	}, nil
}

// Totals returns the totals stored by the last AggregateFiling.
func (s *Service) Totals(ctx context.Context, vatID string) (*vatreturn.Document, error) {
	doc, err := s.store.GetTotals(ctx, vatID)
	if err != nil {
		return nil, NewFilingError("Totals", vatID, err)
	}
	return doc, nil
}

// InvoiceDiff compares the two latest versions of an invoice. When they
// differ it uploads a change report and moves every open filing holding
// the invoice back to Draft.
func (s *Service) InvoiceDiff(ctx context.Context, invoiceID string) (*DiffOutcome, error) {
	const op = "InvoiceDiff"

	log := logger.WithInvoice(s.log, invoiceID)

	inv, err := s.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, NewFilingError(op, invoiceID, err)
	}
	if !inv.HasPreviousVersion() {
		return nil, NewFilingError(op, invoiceID, ErrMissingVersion)
	}

	oldDoc, err := s.document(ctx, inv.ObjectKeyV1)
	if err != nil {
		return nil, NewFilingError(op, invoiceID, fmt.Errorf("previous version: %w", err))
	}
	newDoc, err := s.document(ctx, inv.ObjectKey)
	if err != nil {
		return nil, NewFilingError(op, invoiceID, fmt.Errorf("current version: %w", err))
	}

	generatedBy := newDoc.Header[vatreturn.HeaderGeneratedBy]
	rectifiedOn := newDoc.Header[vatreturn.HeaderGeneratedOn]
	if generatedBy == "" || rectifiedOn == "" || inv.CreatedOn.IsZero() {
		return nil, NewFilingError(op, invoiceID, ErrMissingMetadata)
	}

	changes, err := diff.DetectChanges(oldDoc, newDoc)
	if err != nil {
		return nil, NewFilingError(op, invoiceID, err)
	}
	if !changes.Rectified() {
		log.Info().Msg("No changes between invoice versions")
		return &DiffOutcome{Status: "success", Message: "No changes detected"}, nil
	}

	artifact, err := diff.GenerateReport(changes, diff.Meta{
		InvoiceID:   invoiceID,
		GeneratedBy: generatedBy,
		GeneratedOn: inv.CreatedOn.UTC().Format(time.RFC3339),
		RectifiedOn: rectifiedOn,
	}, s.format)
	if err != nil {
		return nil, NewFilingError(op, invoiceID, err)
	}
	url, err := s.objects.Put(ctx, artifact.Name, artifact.Data)
	if err != nil {
		return nil, NewFilingError(op, invoiceID, err)
	}

	if err := s.reopenFilings(ctx, invoiceID); err != nil {
		return nil, NewFilingError(op, invoiceID, err)
	}

	log.Info().
		Int("changes", len(changes)).
		Str("report", url).
		Msg("Invoice rectified")

	return &DiffOutcome{
		Status:  "success",
		Message: "Invoice update diff processed successfully",
		Data:    &url,
		Changes: changes,
	}, nil
}

// reopenFilings moves every open filing holding invoiceID back to Draft.
func (s *Service) reopenFilings(ctx context.Context, invoiceID string) error {
	filings, err := s.store.FilingsWithInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	for _, f := range filings {
		if !f.Status.CanTransition(models.FilingDraft) {
			flog := logger.WithFiling(s.log, f.VatID)
			flog.Warn().
				Str("invoice_id", invoiceID).
				Str("status", string(f.Status)).
				Msg("Rectified invoice belongs to a closed filing")
			continue
		}
		if f.Status == models.FilingDraft {
			continue
		}
		f.Status = models.FilingDraft
		if err := s.store.UpdateFiling(ctx, f); err != nil {
			return err
		}
		flog := logger.WithFiling(s.log, f.VatID)
		flog.Info().Str("invoice_id", invoiceID).Msg("Filing reopened")
	}
	return nil
}

// RemoveFailedInvoice drops invoiceID from the failed invoices of a
// filing. Removing an invoice that is not listed is a no-op.
func (s *Service) RemoveFailedInvoice(ctx context.Context, vatID, invoiceID string) (*models.Filing, error) {
	const op = "RemoveFailedInvoice"

	f, err := s.store.GetFiling(ctx, vatID)
	if err != nil {
		return nil, NewFilingError(op, vatID, err)
	}
	if !f.Status.IsOpen() {
		return nil, NewFilingError(op, vatID, fmt.Errorf("%w: filing is %s", ErrInvalidTransition, f.Status))
	}

	i := slices.Index(f.FailedInvoices, invoiceID)
	if i < 0 {
		return f, nil
	}
	f.FailedInvoices = slices.Delete(f.FailedInvoices, i, i+1)
	if err := s.store.UpdateFiling(ctx, f); err != nil {
		return nil, NewFilingError(op, vatID, err)
	}
	return f, nil
}

// MarkFiled closes a Validated filing.
func (s *Service) MarkFiled(ctx context.Context, vatID string) (*models.Filing, error) {
	const op = "MarkFiled"

	f, err := s.store.GetFiling(ctx, vatID)
	if err != nil {
		return nil, NewFilingError(op, vatID, err)
	}
	if f.Status != models.FilingValidated || !f.Status.CanTransition(models.FilingFiled) {
		return nil, NewFilingError(op, vatID, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, f.Status, models.FilingFiled))
	}

	f.Status = models.FilingFiled
	if err := s.store.UpdateFiling(ctx, f); err != nil {
		return nil, NewFilingError(op, vatID, err)
	}

	flog := logger.WithFiling(s.log, vatID)
	flog.Info().Msg("Filing filed")
	return f, nil
}

// fetchResult is one invoice fetched and mapped, or the reason it was not.
type fetchResult struct {
	InvoiceID string
	Invoice   *models.Invoice
	Document  *vatreturn.Document
	Err       error
}

type fetchJob struct {
	InvoiceID string
	Index     int
}

// fetchInParallel fetches and maps invoiceIDs on the worker pool. Results
// keep the order of invoiceIDs.
func (s *Service) fetchInParallel(ctx context.Context, invoiceIDs []string) []fetchResult {
	jobs := make(chan fetchJob, len(invoiceIDs))
	results := make([]fetchResult, len(invoiceIDs))

	var (
		processed int
		mu        sync.Mutex
		wg        sync.WaitGroup
	)
	for w := 0; w < min(s.workers, len(invoiceIDs)); w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for job := range jobs {
				s.log.Debug().
					Int("worker", workerID).
					Str("invoice_id", job.InvoiceID).
					Int("index", job.Index+1).
					Msg("Worker processing invoice")

				results[job.Index] = s.fetchInvoice(ctx, job.InvoiceID)

				mu.Lock()
				processed++
				current := processed
				mu.Unlock()

				if results[job.Index].Err != nil {
					flog := logger.WithInvoice(s.log, job.InvoiceID)
					flog.Warn().
						Err(results[job.Index].Err).
						Int("done", current).
						Int("total", len(invoiceIDs)).
						Msg("Invoice could not be fetched")
				}
			}
		}(w)
	}

	for i, id := range invoiceIDs {
		jobs <- fetchJob{InvoiceID: id, Index: i}
	}
	close(jobs)

	wg.Wait()

	return results
}

// fetchInvoice loads the invoice record and maps its current file.
func (s *Service) fetchInvoice(ctx context.Context, invoiceID string) fetchResult {
	r := fetchResult{InvoiceID: invoiceID}

	r.Invoice, r.Err = s.store.GetInvoice(ctx, invoiceID)
	if r.Err != nil {
		return r
	}
	r.Document, r.Err = s.document(ctx, r.Invoice.ObjectKey)
	if r.Err != nil {
		r.Err = fmt.Errorf("error fetching details for invoice %s: %w", invoiceID, r.Err)
	}
	return r
}

func (s *Service) document(ctx context.Context, ref string) (*vatreturn.Document, error) {
	rows, err := s.source.Rows(ctx, ref)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, vatreturn.NewMappingError("ToCanonical", vatreturn.ErrNoRows, ref)
	}
	return s.mapper.ToCanonical(rows), nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
