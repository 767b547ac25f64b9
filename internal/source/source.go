// Package source resolves an invoice reference into spreadsheet rows.
// A reference is either a Google Sheets URL or an object-store URL of an
// uploaded workbook.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"vatfiling/internal/logger"
	"vatfiling/internal/sheets"
	"vatfiling/internal/vatreturn"
	"vatfiling/internal/xlsx"
)

var (
	// ErrEmptyReference is returned for an invoice without an uploaded file.
	ErrEmptyReference = errors.New("empty object reference")

	// ErrSheetsDisabled is returned for a Sheets URL when no opener is set.
	ErrSheetsDisabled = errors.New("google sheets source is not configured")
)

// ObjectGetter fetches stored bytes by URL.
type ObjectGetter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// SheetReader reads the rows of one worksheet.
type SheetReader interface {
	ReadRows(ctx context.Context, worksheet string) ([]vatreturn.Row, error)
}

// SheetOpener connects to the spreadsheet behind url.
type SheetOpener func(ctx context.Context, url string) (SheetReader, error)

// OpenGoogleSheet opens url with the service-account credentials from the
// environment.
func OpenGoogleSheet(ctx context.Context, url string) (SheetReader, error) {
	return sheets.NewSheetsService(ctx, url)
}

// Options configure a Resolver.
type Options struct {
	Worksheet string
	// RateLimit is the number of fetches per second; Burst the number
	// allowed at once.
	RateLimit float64
	Burst     int
	OpenSheet SheetOpener
}

// Resolver turns references into rows, throttling upstream fetches.
type Resolver struct {
	objects   ObjectGetter
	openSheet SheetOpener
	worksheet string
	limiter   *rate.Limiter
	log       zerolog.Logger
}

// NewResolver creates a resolver over objects. A non-positive RateLimit
// disables throttling.
func NewResolver(objects ObjectGetter, opts Options) *Resolver {
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}
	worksheet := opts.Worksheet
	if worksheet == "" {
		worksheet = xlsx.DefaultSheet
	}

	return &Resolver{
		objects:   objects,
		openSheet: opts.OpenSheet,
		worksheet: worksheet,
		limiter:   rate.NewLimiter(limit, burst),
		log:       logger.WithComponent("source"),
	}
}

// Rows fetches the rows behind ref.
func (r *Resolver) Rows(ctx context.Context, ref string) ([]vatreturn.Row, error) {
	const op = "Rows"

	if ref == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyReference)
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: waiting for fetch slot: %w", op, err)
	}

	if sheets.IsSheetURL(ref) {
		return r.sheetRows(ctx, ref)
	}

	r.log.Debug().Str("url", ref).Msg("Fetching workbook")

	data, err := r.objects.Get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rows, err := xlsx.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", op, ref, err)
	}
	return rows, nil
}

func (r *Resolver) sheetRows(ctx context.Context, url string) ([]vatreturn.Row, error) {
	const op = "sheetRows"

	if r.openSheet == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrSheetsDisabled)
	}

	r.log.Debug().Str("url", url).Str("worksheet", r.worksheet).Msg("Reading Google Sheet")

	sheet, err := r.openSheet(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rows, err := sheet.ReadRows(ctx, r.worksheet)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rows, nil
}

// Document fetches ref and maps it into a canonical return.
func (r *Resolver) Document(ctx context.Context, ref string, m *vatreturn.Mapper) (*vatreturn.Document, error) {
	rows, err := r.Rows(ctx, ref)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, vatreturn.NewMappingError("Document", vatreturn.ErrNoRows, ref)
	}
	return m.ToCanonical(rows), nil
}
