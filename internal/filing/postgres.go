package filing

import (
	"context"
	"errors"
	"fmt"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"vatfiling/internal/logger"
	"vatfiling/internal/vatreturn"
	"vatfiling/pkg/models"
)

// Schema creates the tables PostgresStore works on.
const Schema = `
CREATE TABLE IF NOT EXISTS vat_filings (
	vat_id          TEXT PRIMARY KEY,
	business_id     TEXT NOT NULL DEFAULT '',
	period_start    DATE,
	period_end      DATE,
	invoices        TEXT[] NOT NULL DEFAULT '{}',
	failed_invoices TEXT[] NOT NULL DEFAULT '{}',
	object_key      TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	created_on      TIMESTAMPTZ NOT NULL,
	totals_saved_on TIMESTAMPTZ
);

ALTER TABLE vat_filings ADD COLUMN IF NOT EXISTS totals_saved_on TIMESTAMPTZ;

CREATE INDEX IF NOT EXISTS vat_filings_invoices_idx ON vat_filings USING GIN (invoices);

CREATE TABLE IF NOT EXISTS vat_invoices (
	invoice_id    TEXT PRIMARY KEY,
	business_id   TEXT NOT NULL DEFAULT '',
	object_key    TEXT NOT NULL DEFAULT '',
	object_key_v1 TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	is_updated    BOOLEAN NOT NULL DEFAULT FALSE,
	created_on    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS vat_filing_totals (
	vat_id TEXT NOT NULL REFERENCES vat_filings (vat_id) ON DELETE CASCADE,
	line   TEXT NOT NULL,
	field  TEXT NOT NULL,
	value  NUMERIC NOT NULL,
	PRIMARY KEY (vat_id, line, field)
);

-- totals are summed exactly, never rounded to a fixed scale
ALTER TABLE vat_filing_totals ALTER COLUMN value TYPE NUMERIC;
`

const uniqueViolation = "23505"

var _ Store = (*PostgresStore)(nil)

// PostgresStore is a Store backed by PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewPostgresStore connects to databaseURL and creates the schema if it
// does not exist yet.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	const op = "NewPostgresStore"

	if databaseURL == "" {
		return nil, fmt.Errorf("%s: DATABASE_URL is not set", op)
	}

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: parse DSN: %w", op, err)
	}
	poolConfig.MaxConns = 16
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	// NUMERIC columns scan into shopspring decimals.
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: create pool: %w", op, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: ping database: %w", op, err)
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: create schema: %w", op, err)
	}

	return &PostgresStore{pool: pool, log: logger.WithComponent("filing-store")}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

const filingColumns = `vat_id, business_id, period_start, period_end, invoices, failed_invoices, object_key, status, created_on`

func (s *PostgresStore) CreateFiling(ctx context.Context, f *models.Filing) error {
	query := `INSERT INTO vat_filings (` + filingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.pool.Exec(ctx, query,
		f.VatID, f.BusinessID, nullTime(f.DateRange.Start), nullTime(f.DateRange.End),
		nonNil(f.Invoices), nonNil(f.FailedInvoices), f.ObjectKey, string(f.Status), f.CreatedOn,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("filing %s: %w", f.VatID, ErrAlreadyExists)
		}
		return fmt.Errorf("insert filing: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetFiling(ctx context.Context, vatID string) (*models.Filing, error) {
	query := `SELECT ` + filingColumns + ` FROM vat_filings WHERE vat_id = $1`
	f, err := scanFiling(s.pool.QueryRow(ctx, query, vatID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("filing %s: %w", vatID, ErrNotFound)
		}
		return nil, fmt.Errorf("get filing: %w", err)
	}
	return f, nil
}

func (s *PostgresStore) UpdateFiling(ctx context.Context, f *models.Filing) error {
	query := `
		UPDATE vat_filings
		SET business_id = $2, period_start = $3, period_end = $4, invoices = $5,
			failed_invoices = $6, object_key = $7, status = $8
		WHERE vat_id = $1`
	cmd, err := s.pool.Exec(ctx, query,
		f.VatID, f.BusinessID, nullTime(f.DateRange.Start), nullTime(f.DateRange.End),
		nonNil(f.Invoices), nonNil(f.FailedInvoices), f.ObjectKey, string(f.Status),
	)
	if err != nil {
		return fmt.Errorf("update filing: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("filing %s: %w", f.VatID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListFilings(ctx context.Context, offset, limit int) ([]*models.Filing, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM vat_filings`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count filings: %w", err)
	}

	query := `SELECT ` + filingColumns + ` FROM vat_filings
		ORDER BY created_on DESC, vat_id LIMIT $1 OFFSET $2`
	filings, err := s.queryFilings(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list filings: %w", err)
	}
	return filings, total, nil
}

func (s *PostgresStore) FilingsWithInvoice(ctx context.Context, invoiceID string) ([]*models.Filing, error) {
	query := `SELECT ` + filingColumns + ` FROM vat_filings
		WHERE invoices @> ARRAY[$1::text] ORDER BY vat_id`
	filings, err := s.queryFilings(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("filings with invoice: %w", err)
	}
	return filings, nil
}

func (s *PostgresStore) queryFilings(ctx context.Context, query string, args ...any) ([]*models.Filing, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []*models.Filing{}
	for rows.Next() {
		f, err := scanFiling(rows)
		if err != nil {
			return nil, fmt.Errorf("scan filing: %w", err)
		}
		list = append(list, f)
	}
	return list, rows.Err()
}

func scanFiling(row pgx.Row) (*models.Filing, error) {
	var (
		f          models.Filing
		start, end *time.Time
		status     string
	)
	err := row.Scan(&f.VatID, &f.BusinessID, &start, &end, &f.Invoices, &f.FailedInvoices,
		&f.ObjectKey, &status, &f.CreatedOn)
	if err != nil {
		return nil, err
	}
	if start != nil {
		f.DateRange.Start = *start
	}
	if end != nil {
		f.DateRange.End = *end
	}
	f.Status = models.FilingStatus(status)
	return &f, nil
}

func (s *PostgresStore) SaveInvoice(ctx context.Context, inv *models.Invoice) error {
	query := `
		INSERT INTO vat_invoices (invoice_id, business_id, object_key, object_key_v1, status, is_updated, created_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (invoice_id) DO UPDATE SET
			business_id = EXCLUDED.business_id,
			object_key = EXCLUDED.object_key,
			object_key_v1 = EXCLUDED.object_key_v1,
			status = EXCLUDED.status,
			is_updated = EXCLUDED.is_updated`
	_, err := s.pool.Exec(ctx, query,
		inv.InvoiceID, inv.BusinessID, inv.ObjectKey, inv.ObjectKeyV1,
		string(inv.Status), inv.IsUpdated, inv.CreatedOn,
	)
	if err != nil {
		return fmt.Errorf("save invoice: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetInvoice(ctx context.Context, invoiceID string) (*models.Invoice, error) {
	query := `
		SELECT invoice_id, business_id, object_key, object_key_v1, status, is_updated, created_on
		FROM vat_invoices WHERE invoice_id = $1`
	var (
		inv    models.Invoice
		status string
	)
	err := s.pool.QueryRow(ctx, query, invoiceID).Scan(
		&inv.InvoiceID, &inv.BusinessID, &inv.ObjectKey, &inv.ObjectKeyV1,
		&status, &inv.IsUpdated, &inv.CreatedOn,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %s: %w", invoiceID, ErrNotFound)
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	inv.Status = models.InvoiceStatus(status)
	return &inv, nil
}

// SaveTotals replaces the totals of vatID in one transaction and stamps
// the filing, so an aggregation without any values still reads back.
func (s *PostgresStore) SaveTotals(ctx context.Context, vatID string, doc *vatreturn.Document) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin totals: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	cmd, err := tx.Exec(ctx, `UPDATE vat_filings SET totals_saved_on = now() WHERE vat_id = $1`, vatID)
	if err != nil {
		return fmt.Errorf("mark totals: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("filing %s: %w", vatID, ErrNotFound)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM vat_filing_totals WHERE vat_id = $1`, vatID); err != nil {
		return fmt.Errorf("clear totals: %w", err)
	}

	batch := &pgx.Batch{}
	for _, l := range vatreturn.Lines() {
		item, ok := doc.Line(l.Key)
		if !ok {
			continue
		}
		for _, f := range l.Fields {
			if v, ok := item.Value(f); ok {
				batch.Queue(`INSERT INTO vat_filing_totals (vat_id, line, field, value) VALUES ($1, $2, $3, $4)`,
					vatID, l.Key, string(f), v)
			}
		}
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert totals: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit totals: %w", err)
	}

	s.log.Debug().Str("vat_id", vatID).Int("values", batch.Len()).Msg("Saved filing totals")
	return nil
}

// GetTotals reads back the totals saved for vatID.
func (s *PostgresStore) GetTotals(ctx context.Context, vatID string) (*vatreturn.Document, error) {
	rows, err := s.pool.Query(ctx, `SELECT line, field, value FROM vat_filing_totals WHERE vat_id = $1`, vatID)
	if err != nil {
		return nil, fmt.Errorf("get totals: %w", err)
	}
	defer rows.Close()

	doc := vatreturn.NewDocument()
	for rows.Next() {
		var (
			line, field string
			value       decimal.Decimal
		)
		if err := rows.Scan(&line, &field, &value); err != nil {
			return nil, fmt.Errorf("scan totals: %w", err)
		}
		item, ok := doc.Lines[line]
		if !ok {
			item = vatreturn.LineItem{}
			doc.Lines[line] = item
		}
		item[vatreturn.SubField(field)] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get totals: %w", err)
	}
	if len(doc.Lines) > 0 {
		return doc, nil
	}

	// No values: either nothing was aggregated yet or every invoice failed.
	var saved bool
	err = s.pool.QueryRow(ctx, `SELECT totals_saved_on IS NOT NULL FROM vat_filings WHERE vat_id = $1`, vatID).Scan(&saved)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get totals: %w", err)
	}
	if !saved {
		return nil, fmt.Errorf("totals of %s: %w", vatID, ErrNotFound)
	}
	return doc, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
