package filing

import (
	"errors"
	"fmt"
)

// Common filing errors
var (
	// ErrNotFound is returned when a filing or invoice does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when creating a record whose id is taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrMissingVersion is returned by InvoiceDiff when the invoice has not
	// been uploaded twice.
	ErrMissingVersion = errors.New("invoice has no previous version to compare")

	// ErrMissingMetadata is returned when the new version of an invoice
	// does not say who generated it and when.
	ErrMissingMetadata = errors.New("missing generation metadata")

	// ErrInvalidTransition is returned for a status change the filing
	// lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid filing status transition")

	// ErrNoInvoices is returned when a filing would hold no invoices.
	ErrNoInvoices = errors.New("filing has no invoices")

	// ErrInvalidPage is returned for a page or size below 1.
	ErrInvalidPage = errors.New("invalid page")
)

// FilingError wraps errors raised by filing operations.
type FilingError struct {
	// Op is the operation that failed (e.g., "ValidateFiling", "MarkFiled").
	Op string

	// VatID identifies the filing (or invoice) concerned, if known.
	VatID string

	Err error
}

func (e *FilingError) Error() string {
	if e.VatID != "" {
		return fmt.Sprintf("filing: %s failed (%s): %v", e.Op, e.VatID, e.Err)
	}
	return fmt.Sprintf("filing: %s failed: %v", e.Op, e.Err)
}

func (e *FilingError) Unwrap() error {
	return e.Err
}

func (e *FilingError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewFilingError creates a FilingError.
func NewFilingError(op, vatID string, err error) *FilingError {
	return &FilingError{
		Op:    op,
		VatID: vatID,
		Err:   err,
	}
}

// WrapFilingError wraps err as a FilingError if it isn't already one.
func WrapFilingError(op, vatID string, err error) error {
	if err == nil {
		return nil
	}

	var filingErr *FilingError
	if errors.As(err, &filingErr) {
		return err
	}

	return NewFilingError(op, vatID, err)
}
