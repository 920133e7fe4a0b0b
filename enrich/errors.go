package enrich

import (
	"errors"
	"fmt"

	"github.com/poiesic/reviewpipe/core"
)

var (
	// ErrClassifierRequired is returned when no classifier is provided.
	ErrClassifierRequired = errors.New("text classifier required")

	// ErrMissingText indicates a record has no usable review text.
	ErrMissingText = errors.New("record has no review text")
)

// RecordError reports the record that made a batch enrichment fail.
type RecordError struct {
	// Index is the record's position in the batch.
	Index int
	// ID is the record's identifier, zero when it has none.
	ID  core.ID
	Err error
}

func (e *RecordError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("record %d (id %s): %v", e.Index, e.ID, e.Err)
	}
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
