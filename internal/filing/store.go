package filing

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"vatfiling/internal/vatreturn"
	"vatfiling/pkg/models"
)

// Store persists filings, invoices and aggregated filing totals.
type Store interface {
	CreateFiling(ctx context.Context, f *models.Filing) error
	GetFiling(ctx context.Context, vatID string) (*models.Filing, error)
	UpdateFiling(ctx context.Context, f *models.Filing) error
	// ListFilings returns filings newest first, plus the total count.
	ListFilings(ctx context.Context, offset, limit int) ([]*models.Filing, int, error)
	// FilingsWithInvoice returns every filing that holds invoiceID.
	FilingsWithInvoice(ctx context.Context, invoiceID string) ([]*models.Filing, error)

	// SaveInvoice creates or replaces an invoice record.
	SaveInvoice(ctx context.Context, inv *models.Invoice) error
	GetInvoice(ctx context.Context, invoiceID string) (*models.Invoice, error)

	// SaveTotals replaces the aggregated totals stored for a filing.
	SaveTotals(ctx context.Context, vatID string, doc *vatreturn.Document) error
	GetTotals(ctx context.Context, vatID string) (*vatreturn.Document, error)
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore is a Store held in process memory. Records are copied on
// the way in and out.
type MemoryStore struct {
	mu       sync.RWMutex
	filings  map[string]*models.Filing
	invoices map[string]*models.Invoice
	totals   map[string]*vatreturn.Document
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		filings:  make(map[string]*models.Filing),
		invoices: make(map[string]*models.Invoice),
		totals:   make(map[string]*vatreturn.Document),
	}
}

func (s *MemoryStore) CreateFiling(_ context.Context, f *models.Filing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.filings[f.VatID]; ok {
		return fmt.Errorf("filing %s: %w", f.VatID, ErrAlreadyExists)
	}
	s.filings[f.VatID] = copyFiling(f)
	return nil
}

func (s *MemoryStore) GetFiling(_ context.Context, vatID string) (*models.Filing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.filings[vatID]
	if !ok {
		return nil, fmt.Errorf("filing %s: %w", vatID, ErrNotFound)
	}
	return copyFiling(f), nil
}

func (s *MemoryStore) UpdateFiling(_ context.Context, f *models.Filing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.filings[f.VatID]; !ok {
		return fmt.Errorf("filing %s: %w", f.VatID, ErrNotFound)
	}
	s.filings[f.VatID] = copyFiling(f)
	return nil
}

func (s *MemoryStore) ListFilings(_ context.Context, offset, limit int) ([]*models.Filing, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*models.Filing, 0, len(s.filings))
	for _, f := range s.filings {
		all = append(all, f)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedOn.Equal(all[j].CreatedOn) {
			return all[i].CreatedOn.After(all[j].CreatedOn)
		}
		return all[i].VatID < all[j].VatID
	})

	total := len(all)
	if offset >= total {
		return []*models.Filing{}, total, nil
	}
	end := min(total, offset+limit)
	page := make([]*models.Filing, 0, end-offset)
	for _, f := range all[offset:end] {
		page = append(page, copyFiling(f))
	}
	return page, total, nil
}

func (s *MemoryStore) FilingsWithInvoice(_ context.Context, invoiceID string) ([]*models.Filing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Filing
	for _, f := range s.filings {
		if f.HasInvoice(invoiceID) {
			out = append(out, copyFiling(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VatID < out[j].VatID })
	return out, nil
}

func (s *MemoryStore) SaveInvoice(_ context.Context, inv *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *inv
	s.invoices[inv.InvoiceID] = &c
	return nil
}

func (s *MemoryStore) GetInvoice(_ context.Context, invoiceID string) (*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[invoiceID]
	if !ok {
		return nil, fmt.Errorf("invoice %s: %w", invoiceID, ErrNotFound)
	}
	c := *inv
	return &c, nil
}

func (s *MemoryStore) SaveTotals(_ context.Context, vatID string, doc *vatreturn.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.filings[vatID]; !ok {
		return fmt.Errorf("filing %s: %w", vatID, ErrNotFound)
	}
	s.totals[vatID] = doc.Clone()
	return nil
}

func (s *MemoryStore) GetTotals(_ context.Context, vatID string) (*vatreturn.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.totals[vatID]
	if !ok {
		return nil, fmt.Errorf("totals of %s: %w", vatID, ErrNotFound)
	}
	return doc.Clone(), nil
}

func copyFiling(f *models.Filing) *models.Filing {
	c := *f
	c.Invoices = append([]string(nil), f.Invoices...)
	c.FailedInvoices = append([]string{}, f.FailedInvoices...)
	return &c
}
