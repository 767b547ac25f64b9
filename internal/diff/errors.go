package diff

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput is returned when a version cannot be compared at all.
	ErrMalformedInput = errors.New("malformed comparison input")

	// ErrUnknownFormat is returned for a report format other than xlsx or pdf.
	ErrUnknownFormat = errors.New("unknown report format")
)

// DiffError wraps errors raised while comparing versions or rendering a
// change report.
type DiffError struct {
	Op      string
	Err     error
	Details string
}

func (e *DiffError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("diff: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("diff: %s failed: %v", e.Op, e.Err)
}

func (e *DiffError) Unwrap() error {
	return e.Err
}

func (e *DiffError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewDiffError creates a DiffError.
func NewDiffError(op string, err error, details string) *DiffError {
	return &DiffError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}
