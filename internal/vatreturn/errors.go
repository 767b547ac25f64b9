package vatreturn

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPath is returned when a field path does not resolve against
	// the return layout.
	ErrInvalidPath = errors.New("invalid field path")

	// ErrMalformedDocument is returned when a serialized return cannot be read.
	ErrMalformedDocument = errors.New("malformed VAT return document")

	// ErrNoRows is returned when a sheet holds no rows at all.
	ErrNoRows = errors.New("no rows to map")
)

// MappingError wraps errors raised while reading or writing a return.
type MappingError struct {
	// Op is the operation that failed (e.g., "ParsePath", "UnmarshalJSON").
	Op string

	Err error

	Details string
}

func (e *MappingError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("vatreturn: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("vatreturn: %s failed: %v", e.Op, e.Err)
}

func (e *MappingError) Unwrap() error {
	return e.Err
}

func (e *MappingError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewMappingError creates a MappingError.
func NewMappingError(op string, err error, details string) *MappingError {
	return &MappingError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}

// WrapMappingError wraps err unless it already is a MappingError.
func WrapMappingError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var mapErr *MappingError
	if errors.As(err, &mapErr) {
		return err
	}

	return NewMappingError(op, err, details)
}
