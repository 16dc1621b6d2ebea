package pipeline

import (
	"errors"
	"fmt"
)

// Data-quality errors. A document failing one of these is excluded from
// aggregation and reported, never counted as zero.
var (
	ErrMissingCategory  = errors.New("missing category")
	ErrNonNumericAmount = errors.New("non-numeric amount")
	ErrUnknownType      = errors.New("unknown transaction type")
	ErrMissingTitle     = errors.New("missing title")
	ErrBadDate          = errors.New("invalid date")
)

// DataError ties a data-quality error to the document and field it came from.
type DataError struct {
	DocID string
	Field string
	Err   error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("document %s: field %q: %v", e.DocID, e.Field, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// Rejection records a document that could not be projected.
type Rejection struct {
	DocID string
	Err   error
}

func dataErr(docID, field string, err error) *DataError {
	return &DataError{DocID: docID, Field: field, Err: err}
}
