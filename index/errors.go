package index

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineRequired is returned when no search engine is provided.
	ErrEngineRequired = errors.New("search engine required")

	// ErrIndexRequired is returned when the target index name is empty.
	ErrIndexRequired = errors.New("index name required")

	// ErrMissingOutcome indicates the engine response had no item for a submitted document.
	ErrMissingOutcome = errors.New("no outcome reported for document")
)

// ItemError is a per-document failure reported by the search engine.
type ItemError struct {
	Status int
	Type   string
	Reason string
}

func (e *ItemError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("bulk item failed with status %d", e.Status)
	}
	return fmt.Sprintf("bulk item failed with status %d: %s: %s", e.Status, e.Type, e.Reason)
}
