package source_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vatfiling/internal/source"
	"vatfiling/internal/vatreturn"
	"vatfiling/internal/xlsx"
)

type fakeObjects struct {
	get func(ctx context.Context, url string) ([]byte, error)
}

func (f *fakeObjects) Get(ctx context.Context, url string) ([]byte, error) {
	return f.get(ctx, url)
}

type fakeSheet struct {
	readRows func(ctx context.Context, worksheet string) ([]vatreturn.Row, error)
}

func (f *fakeSheet) ReadRows(ctx context.Context, worksheet string) ([]vatreturn.Row, error) {
	return f.readRows(ctx, worksheet)
}

const sheetURL = "https://docs.google.com/spreadsheets/d/1AbCdEf/edit"

func workbook(t *testing.T) []byte {
	t.Helper()
	doc := vatreturn.NewDocument()
	doc.Header[vatreturn.HeaderID] = "INV-7"
	doc.Lines[vatreturn.LineImports] = vatreturn.LineItem{
		vatreturn.FieldAmount: vatreturn.ParseAmount("1000"),
		vatreturn.FieldVAT:    vatreturn.ParseAmount("50"),
	}
	data, err := xlsx.Encode(vatreturn.NewMapper(vatreturn.MapperOptions{}).ToRows(doc), "")
	require.NoError(t, err)
	return data
}

func TestResolver_Workbook(t *testing.T) {
	data := workbook(t)
	var fetched []string
	objects := &fakeObjects{get: func(_ context.Context, url string) ([]byte, error) {
		fetched = append(fetched, url)
		return data, nil
	}}

	r := source.NewResolver(objects, source.Options{RateLimit: 100, Burst: 5})
	doc, err := r.Document(context.Background(), "https://objects.local/vat-bucket/INV-7-12345.xlsx",
		vatreturn.NewMapper(vatreturn.MapperOptions{}))
	require.NoError(t, err)

	assert.Equal(t, []string{"https://objects.local/vat-bucket/INV-7-12345.xlsx"}, fetched)
	assert.Equal(t, "INV-7", doc.Header[vatreturn.HeaderID])
	assert.Equal(t, "50", vatreturn.Get(doc, string(vatreturn.SectionSales)+"."+vatreturn.LineImports, string(vatreturn.FieldVAT)))
}

func TestResolver_GoogleSheet(t *testing.T) {
	objects := &fakeObjects{get: func(context.Context, string) ([]byte, error) {
		t.Fatal("object store must not be used for sheet URLs")
		return nil, nil
	}}

	var opened, worksheet string
	r := source.NewResolver(objects, source.Options{
		Worksheet: "Q4",
		OpenSheet: func(_ context.Context, url string) (source.SheetReader, error) {
			opened = url
			return &fakeSheet{readRows: func(_ context.Context, ws string) ([]vatreturn.Row, error) {
				worksheet = ws
				return []vatreturn.Row{{"ID", "INV-9"}}, nil
			}}, nil
		},
	})

	rows, err := r.Rows(context.Background(), sheetURL)
	require.NoError(t, err)
	assert.Equal(t, sheetURL, opened)
	assert.Equal(t, "Q4", worksheet)
	assert.Equal(t, []vatreturn.Row{{"ID", "INV-9"}}, rows)
}

func TestResolver_Errors(t *testing.T) {
	boom := errors.New("bucket unavailable")
	objects := &fakeObjects{get: func(context.Context, string) ([]byte, error) {
		return nil, boom
	}}
	r := source.NewResolver(objects, source.Options{})
	ctx := context.Background()

	_, err := r.Rows(ctx, "")
	assert.ErrorIs(t, err, source.ErrEmptyReference)

	_, err = r.Rows(ctx, "https://objects.local/vat-bucket/a.xlsx")
	assert.ErrorIs(t, err, boom)

	_, err = r.Rows(ctx, sheetURL)
	assert.ErrorIs(t, err, source.ErrSheetsDisabled)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = r.Rows(cancelled, "https://objects.local/vat-bucket/a.xlsx")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolver_EmptySheet(t *testing.T) {
	r := source.NewResolver(&fakeObjects{}, source.Options{
		OpenSheet: func(context.Context, string) (source.SheetReader, error) {
			return &fakeSheet{readRows: func(context.Context, string) ([]vatreturn.Row, error) {
				return nil, nil
			}}, nil
		},
	})

	_, err := r.Document(context.Background(), sheetURL, vatreturn.NewMapper(vatreturn.MapperOptions{}))
	assert.ErrorIs(t, err, vatreturn.ErrNoRows)
}
