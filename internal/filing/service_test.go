package filing_test

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vatfiling/internal/diff"
	"vatfiling/internal/filing"
	"vatfiling/internal/objectstore"
	"vatfiling/internal/source"
	"vatfiling/internal/validation"
	"vatfiling/internal/vatreturn"
	"vatfiling/internal/xlsx"
	"vatfiling/pkg/models"
)

const (
	baseURL = "https://objects.local/vat-bucket"
	trn     = "100123456700003"
)

var now = time.Date(2024, 11, 21, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc     *filing.Service
	store   *filing.MemoryStore
	objects *objectstore.FileStore
}

func newFixture(t *testing.T, workers int) *fixture {
	t.Helper()

	objects, err := objectstore.NewFileStore(t.TempDir(), baseURL)
	require.NoError(t, err)
	store := filing.NewMemoryStore()
	svc := filing.NewService(
		store,
		objects,
		source.NewResolver(objects, source.Options{}),
		vatreturn.NewMapper(vatreturn.MapperOptions{}),
		validation.NewValidator(validation.DefaultRules()),
		filing.Options{Workers: workers, Now: func() time.Time { return now }},
	)
	return &fixture{svc: svc, store: store, objects: objects}
}

// ratedDocument fills every line at the standard rate; dubaiVAT overrides
// the VAT charged on line 1b.
func ratedDocument(id string, dubaiVAT int64) *vatreturn.Document {
	doc := vatreturn.NewDocument()
	doc.Header[vatreturn.HeaderID] = id
	doc.Header[vatreturn.HeaderIssueTime] = "2024-11-02"
	for _, l := range vatreturn.Lines() {
		item := vatreturn.LineItem{vatreturn.FieldAmount: decimal.NewFromInt(1000)}
		switch {
		case l.Has(vatreturn.FieldVAT):
			item[vatreturn.FieldVAT] = decimal.NewFromInt(50)
		case l.Has(vatreturn.FieldRecoverable):
			item[vatreturn.FieldRecoverable] = decimal.NewFromInt(50)
		}
		doc.Lines[l.Key] = item
	}
	doc.Lines[vatreturn.LineDubai][vatreturn.FieldVAT] = decimal.NewFromInt(dubaiVAT)
	return doc
}

func withMetadata(doc *vatreturn.Document, by, on string) *vatreturn.Document {
	doc.Header[vatreturn.HeaderGeneratedBy] = by
	doc.Header[vatreturn.HeaderGeneratedOn] = on
	return doc
}

func encode(t *testing.T, doc *vatreturn.Document) []byte {
	t.Helper()
	data, err := xlsx.Encode(vatreturn.NewMapper(vatreturn.MapperOptions{}).ToRows(doc), "")
	require.NoError(t, err)
	return data
}

func (f *fixture) upload(t *testing.T, id string, doc *vatreturn.Document) *models.Invoice {
	t.Helper()
	inv, err := f.svc.UploadInvoice(context.Background(), id, id+".xlsx", encode(t, doc))
	require.NoError(t, err)
	return inv
}

func TestCreateFiling(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	filed, err := f.svc.CreateFiling(ctx, trn, []string{"INV-1", "INV-2", "INV-1", ""}, models.DateRange{})
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^[0-9]{15}$`), filed.VatID)
	assert.Equal(t, []string{"INV-1", "INV-2"}, filed.Invoices)
	assert.Equal(t, models.FilingDraft, filed.Status)
	assert.Equal(t, now, filed.CreatedOn)

	stored, err := f.svc.GetFiling(ctx, filed.VatID)
	require.NoError(t, err)
	assert.Equal(t, filed.Invoices, stored.Invoices)

	_, err = f.svc.CreateFiling(ctx, trn, nil, models.DateRange{})
	assert.ErrorIs(t, err, filing.ErrNoInvoices)

	_, err = f.svc.GetFiling(ctx, "000000000000000")
	assert.ErrorIs(t, err, filing.ErrNotFound)
	var filingErr *filing.FilingError
	require.ErrorAs(t, err, &filingErr)
	assert.Equal(t, "GetFiling", filingErr.Op)
}

func TestNewVatID(t *testing.T) {
	id := filing.NewVatID(time.UnixMilli(1732181400123))
	assert.Len(t, id, 15)
	assert.Equal(t, "181400123", id[:9])

	short := filing.NewVatID(time.UnixMilli(42))
	assert.Len(t, short, 15)
	assert.Equal(t, "000000042", short[:9])
}

func TestListFilings(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.CreateFiling(ctx, trn, []string{fmt.Sprintf("INV-%d", i)}, models.DateRange{})
		require.NoError(t, err)
	}

	page, err := f.svc.ListFilings(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page.Data, 1)
	assert.Equal(t, 2, page.Pagination.Current)
	assert.Equal(t, 2, page.Pagination.Total)
	require.NotNil(t, page.Pagination.Previous)
	assert.Equal(t, 1, *page.Pagination.Previous)
	assert.Nil(t, page.Pagination.Next)
	assert.Equal(t, models.Records{Total: 3, OnPage: 1}, page.Pagination.Records)

	_, err = f.svc.ListFilings(ctx, 0, 10)
	assert.ErrorIs(t, err, filing.ErrInvalidPage)
}

func TestUploadInvoice_KeepsPreviousVersion(t *testing.T) {
	f := newFixture(t, 4)

	first := f.upload(t, "INV-1", ratedDocument("INV-1", 50))
	assert.Regexp(t, regexp.MustCompile(`^`+baseURL+`/INV-1-[0-9]{5}\.xlsx$`), first.ObjectKey)
	assert.Empty(t, first.ObjectKeyV1)
	assert.False(t, first.IsUpdated)
	assert.False(t, first.HasPreviousVersion())

	second := f.upload(t, "INV-1", ratedDocument("INV-1", 60))
	assert.Equal(t, first.ObjectKey, second.ObjectKeyV1)
	assert.NotEqual(t, first.ObjectKey, second.ObjectKey)
	assert.True(t, second.IsUpdated)
	assert.True(t, second.HasPreviousVersion())
}

func TestRegisterInvoice(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	require.NoError(t, f.svc.RegisterInvoice(ctx, &models.Invoice{
		InvoiceID:  "INV-1",
		BusinessID: trn,
		ObjectKey:  "https://docs.google.com/spreadsheets/d/abc/edit",
	}))
	inv, err := f.store.GetInvoice(ctx, "INV-1")
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePending, inv.Status)
	assert.Equal(t, now, inv.CreatedOn)
	assert.False(t, inv.IsUpdated)

	require.NoError(t, f.svc.RegisterInvoice(ctx, &models.Invoice{
		InvoiceID: "INV-1",
		ObjectKey: "https://docs.google.com/spreadsheets/d/def/edit",
	}))
	inv, err = f.store.GetInvoice(ctx, "INV-1")
	require.NoError(t, err)
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/abc/edit", inv.ObjectKeyV1)
	assert.Equal(t, trn, inv.BusinessID)
	assert.True(t, inv.IsUpdated)

	assert.Error(t, f.svc.RegisterInvoice(ctx, &models.Invoice{}))
}

func TestValidateFiling(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			f := newFixture(t, workers)
			ctx := context.Background()

			f.upload(t, "INV-1", ratedDocument("INV-1", 50))
			f.upload(t, "INV-2", ratedDocument("INV-2", 80))
			// INV-3 was never uploaded.

			created, err := f.svc.CreateFiling(ctx, trn, []string{"INV-1", "INV-2", "INV-3"}, models.DateRange{
				Start: time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
			})
			require.NoError(t, err)

			res, err := f.svc.ValidateFiling(ctx, created.VatID)
			require.NoError(t, err)

			require.Len(t, res.Invoices, 2)
			assert.Equal(t, "INV-1", res.Invoices[0].ID)
			assert.True(t, res.Invoices[0].IsValidated)
			assert.Equal(t, "INV-2", res.Invoices[1].ID)
			assert.Equal(t, []validation.ErrorRecord{{
				Category:  validation.CategoryVAT,
				Code:      validation.CodeVATCheckFailed,
				Message:   "vatAmount1b validation failed",
				InvoiceID: "INV-2",
			}}, res.Invoices[1].Errors)

			assert.False(t, res.GeneralStatus)
			assert.Equal(t, []string{"INV-2", "INV-3"}, res.FailedInvoices)
			assert.Contains(t, res.Errors, "INV-3")
			assert.False(t, res.CheckList.Check1)
			assert.True(t, res.CheckList.Check2)
			assert.True(t, res.CheckList.Check3)
			assert.True(t, res.CheckList.Check4)
			assert.False(t, res.CheckList.Check5)

			stored, err := f.svc.GetFiling(ctx, created.VatID)
			require.NoError(t, err)
			assert.Equal(t, models.FilingDraft, stored.Status)
			assert.Equal(t, []string{"INV-2", "INV-3"}, stored.FailedInvoices)

			inv, err := f.store.GetInvoice(ctx, "INV-2")
			require.NoError(t, err)
			assert.Equal(t, models.InvoiceFailed, inv.Status)
			inv, err = f.store.GetInvoice(ctx, "INV-1")
			require.NoError(t, err)
			assert.Equal(t, models.InvoiceValidated, inv.Status)
		})
	}
}

func TestFilingLifecycle(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	f.upload(t, "INV-1", ratedDocument("INV-1", 50))
	created, err := f.svc.CreateFiling(ctx, trn, []string{"INV-1"}, models.DateRange{})
	require.NoError(t, err)

	_, err = f.svc.MarkFiled(ctx, created.VatID)
	assert.ErrorIs(t, err, filing.ErrInvalidTransition, "a draft cannot be filed")

	res, err := f.svc.ValidateFiling(ctx, created.VatID)
	require.NoError(t, err)
	assert.True(t, res.GeneralStatus)
	assert.Empty(t, res.FailedInvoices)

	stored, err := f.svc.GetFiling(ctx, created.VatID)
	require.NoError(t, err)
	assert.Equal(t, models.FilingValidated, stored.Status)

	filed, err := f.svc.MarkFiled(ctx, created.VatID)
	require.NoError(t, err)
	assert.Equal(t, models.FilingFiled, filed.Status)

	_, err = f.svc.MarkFiled(ctx, created.VatID)
	assert.ErrorIs(t, err, filing.ErrInvalidTransition)
	_, err = f.svc.ValidateFiling(ctx, created.VatID)
	assert.ErrorIs(t, err, filing.ErrInvalidTransition)
	_, err = f.svc.RemoveFailedInvoice(ctx, created.VatID, "INV-1")
	assert.ErrorIs(t, err, filing.ErrInvalidTransition)
}

func TestRemoveFailedInvoice(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	f.upload(t, "INV-2", ratedDocument("INV-2", 80))
	created, err := f.svc.CreateFiling(ctx, trn, []string{"INV-2", "INV-9"}, models.DateRange{})
	require.NoError(t, err)
	_, err = f.svc.ValidateFiling(ctx, created.VatID)
	require.NoError(t, err)

	updated, err := f.svc.RemoveFailedInvoice(ctx, created.VatID, "INV-9")
	require.NoError(t, err)
	assert.Equal(t, []string{"INV-2"}, updated.FailedInvoices)
	assert.Equal(t, []string{"INV-2", "INV-9"}, updated.Invoices)

	unchanged, err := f.svc.RemoveFailedInvoice(ctx, created.VatID, "INV-404")
	require.NoError(t, err)
	assert.Equal(t, []string{"INV-2"}, unchanged.FailedInvoices)

	_, err = f.svc.RemoveFailedInvoice(ctx, "000000000000000", "INV-2")
	assert.ErrorIs(t, err, filing.ErrNotFound)
}

func TestValidateInvoice(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	f.upload(t, "INV-1", ratedDocument("INV-1", 50))

	res, err := f.svc.ValidateInvoice(ctx, "INV-1")
	require.NoError(t, err)
	assert.True(t, res.GeneralStatus)
	assert.True(t, res.CheckList.Check5)

	res, err = f.svc.ValidateInvoice(ctx, "INV-404")
	require.NoError(t, err)
	assert.False(t, res.GeneralStatus)
	assert.Equal(t, []string{"INV-404"}, res.FailedInvoices)
}

func TestInvoiceErrors(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	f.upload(t, "INV-2", withMetadata(ratedDocument("INV-2", 80), "omar", "2024-11-21"))

	report, err := f.svc.InvoiceErrors(ctx, "INV-2")
	require.NoError(t, err)
	assert.Equal(t, "username: omar\ncreated_at: 2024-11-21\ninvoiceId:INV-2\n\n"+
		"Category: VAT Check, Code: VAT_CHECK_FAILED, Message: vatAmount1b validation failed", report)

	_, err = f.svc.InvoiceErrors(ctx, "INV-404")
	assert.ErrorIs(t, err, filing.ErrNotFound)
}

func TestAggregateFiling(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	f.upload(t, "INV-1", ratedDocument("INV-1", 50))
	f.upload(t, "INV-2", ratedDocument("INV-2", 80))
	created, err := f.svc.CreateFiling(ctx, trn, []string{"INV-1", "INV-2", "INV-3"}, models.DateRange{})
	require.NoError(t, err)

	summary, err := f.svc.AggregateFiling(ctx, created.VatID)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalInvoices)
	assert.Equal(t, models.FilingDraft, summary.Status)
	assert.Contains(t, summary.Errors, "INV-3")
	assert.Len(t, summary.Errors, 1)

	sales := string(vatreturn.SectionSales) + "."
	assert.Equal(t, "2000", vatreturn.Get(summary.Document, sales+vatreturn.LineAbuDhabi, ""))
	assert.Equal(t, "130", vatreturn.Get(summary.Document, sales+vatreturn.LineDubai, string(vatreturn.FieldVAT)))
	assert.Empty(t, summary.Document.Header)
	assert.False(t, summary.Document.ProfitScheme)

	assert.Equal(t, baseURL+"/"+created.VatID+"-aggregate.xlsx", summary.ObjectKey)
	exported, err := f.objects.Get(ctx, summary.ObjectKey)
	require.NoError(t, err)
	rows, err := xlsx.Decode(exported)
	require.NoError(t, err)
	again := vatreturn.NewMapper(vatreturn.MapperOptions{}).ToCanonical(rows)
	assert.Equal(t, vatreturn.Flatten(summary.Document), vatreturn.Flatten(again))

	totals, err := f.svc.Totals(ctx, created.VatID)
	require.NoError(t, err)
	assert.Equal(t, vatreturn.Flatten(summary.Document), vatreturn.Flatten(totals))

	stored, err := f.svc.GetFiling(ctx, created.VatID)
	require.NoError(t, err)
	assert.Equal(t, summary.ObjectKey, stored.ObjectKey)
}

func TestTotals_EmptyAggregation(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	created, err := f.svc.CreateFiling(ctx, trn, []string{"INV-8", "INV-9"}, models.DateRange{})
	require.NoError(t, err)

	_, err = f.svc.Totals(ctx, created.VatID)
	assert.ErrorIs(t, err, filing.ErrNotFound)

	summary, err := f.svc.AggregateFiling(ctx, created.VatID)
	require.NoError(t, err)
	assert.Len(t, summary.Errors, 2)

	totals, err := f.svc.Totals(ctx, created.VatID)
	require.NoError(t, err)
	assert.Empty(t, totals.Lines)
}

func TestInvoiceDiff(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	f.upload(t, "INV-1", ratedDocument("INV-1", 50))
	_, err := f.svc.InvoiceDiff(ctx, "INV-1")
	assert.ErrorIs(t, err, filing.ErrMissingVersion)

	open, err := f.svc.CreateFiling(ctx, trn, []string{"INV-1"}, models.DateRange{})
	require.NoError(t, err)
	closed, err := f.svc.CreateFiling(ctx, trn, []string{"INV-1"}, models.DateRange{})
	require.NoError(t, err)
	for _, id := range []string{open.VatID, closed.VatID} {
		_, err = f.svc.ValidateFiling(ctx, id)
		require.NoError(t, err)
	}
	_, err = f.svc.MarkFiled(ctx, closed.VatID)
	require.NoError(t, err)

	f.upload(t, "INV-1", withMetadata(ratedDocument("INV-1", 60), "omar", "2024-11-25"))

	outcome, err := f.svc.InvoiceDiff(ctx, "INV-1")
	require.NoError(t, err)
	assert.Equal(t, "success", outcome.Status)
	assert.Equal(t, "Invoice update diff processed successfully", outcome.Message)
	require.NotNil(t, outcome.Data)
	assert.Regexp(t, regexp.MustCompile(`^`+baseURL+`/INV-1-changes-[0-9a-f]{8}\.xlsx$`), *outcome.Data)
	assert.Equal(t, diff.ChangeSet{{
		Field:    "vatAmount1b",
		OldValue: "50",
		NewValue: "60",
	}}, outcome.Changes)

	report, err := f.objects.Get(ctx, *outcome.Data)
	require.NoError(t, err)
	assert.NotEmpty(t, report)

	reopened, err := f.svc.GetFiling(ctx, open.VatID)
	require.NoError(t, err)
	assert.Equal(t, models.FilingDraft, reopened.Status)
	stillFiled, err := f.svc.GetFiling(ctx, closed.VatID)
	require.NoError(t, err)
	assert.Equal(t, models.FilingFiled, stillFiled.Status)
}

func TestInvoiceDiff_NoChanges(t *testing.T) {
	f := newFixture(t, 4)

	doc := withMetadata(ratedDocument("INV-1", 50), "omar", "2024-11-25")
	f.upload(t, "INV-1", doc)
	f.upload(t, "INV-1", doc)

	outcome, err := f.svc.InvoiceDiff(context.Background(), "INV-1")
	require.NoError(t, err)
	assert.Equal(t, &filing.DiffOutcome{Status: "success", Message: "No changes detected"}, outcome)
}

func TestInvoiceDiff_MissingMetadata(t *testing.T) {
	f := newFixture(t, 4)

	f.upload(t, "INV-1", ratedDocument("INV-1", 50))
	f.upload(t, "INV-1", ratedDocument("INV-1", 60))

	_, err := f.svc.InvoiceDiff(context.Background(), "INV-1")
	assert.ErrorIs(t, err, filing.ErrMissingMetadata)
}

type fakeRows struct {
	rows func(ctx context.Context, ref string) ([]vatreturn.Row, error)
}

func (f *fakeRows) Rows(ctx context.Context, ref string) ([]vatreturn.Row, error) {
	return f.rows(ctx, ref)
}

func TestValidateFiling_SourceFailuresDoNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	objects, err := objectstore.NewFileStore(t.TempDir(), baseURL)
	require.NoError(t, err)
	store := filing.NewMemoryStore()

	mapper := vatreturn.NewMapper(vatreturn.MapperOptions{})
	good := mapper.ToRows(ratedDocument("INV-1", 50))
	unavailable := errors.New("upstream unavailable")

	svc := filing.NewService(store, objects, &fakeRows{rows: func(_ context.Context, ref string) ([]vatreturn.Row, error) {
		switch ref {
		case "ref-good":
			return good, nil
		case "ref-empty":
			return nil, nil
		default:
			return nil, unavailable
		}
	}}, mapper, validation.NewValidator(validation.DefaultRules()), filing.Options{Workers: 2})

	for id, ref := range map[string]string{"INV-1": "ref-good", "INV-2": "ref-empty", "INV-3": "ref-down"} {
		require.NoError(t, svc.RegisterInvoice(ctx, &models.Invoice{InvoiceID: id, ObjectKey: ref}))
	}
	created, err := svc.CreateFiling(ctx, trn, []string{"INV-1", "INV-2", "INV-3"}, models.DateRange{})
	require.NoError(t, err)

	res, err := svc.ValidateFiling(ctx, created.VatID)
	require.NoError(t, err)
	require.Len(t, res.Invoices, 1)
	assert.True(t, res.Invoices[0].IsValidated)
	assert.Equal(t, []string{"INV-2", "INV-3"}, res.FailedInvoices)
	assert.Contains(t, res.Errors["INV-2"], vatreturn.ErrNoRows.Error())
	assert.Contains(t, res.Errors["INV-3"], unavailable.Error())
}
