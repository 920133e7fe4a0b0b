package ingestion

import (
	"errors"
	"fmt"

	"github.com/poiesic/reviewpipe/index"
)

var (
	// ErrBlobStoreRequired is returned when a blob store is not provided.
	ErrBlobStoreRequired = errors.New("blob store required")

	// ErrConnectorRequired is returned when a search connector is not provided.
	ErrConnectorRequired = errors.New("search connector required")

	// ErrInvalidInvocation is returned when required invocation fields are missing.
	ErrInvalidInvocation = errors.New("invalid invocation")

	// ErrUnknownVariant indicates an unsupported pipeline variant name.
	ErrUnknownVariant = errors.New("unknown pipeline variant")

	// ErrSourceNotFound is returned when the source object does not exist.
	ErrSourceNotFound = errors.New("source object not found")

	// ErrEnrichmentFailed is returned when any record could not be enriched.
	ErrEnrichmentFailed = errors.New("enrichment failed")

	// ErrBulkWriteFailed is returned when any document was not written.
	ErrBulkWriteFailed = errors.New("bulk write failed")
)

// StageError reports the stage at which a run failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// BulkWriteError carries the bulk result of a partially or fully failed write.
// It matches ErrBulkWriteFailed and every per-document cause.
type BulkWriteError struct {
	Result *index.BulkResult
}

func (e *BulkWriteError) Error() string {
	failed := e.Result.Failed()
	if len(failed) == 0 {
		return ErrBulkWriteFailed.Error()
	}
	return fmt.Sprintf("%v: %d of %d documents failed, first at position %d: %v",
		ErrBulkWriteFailed, len(failed), len(e.Result.Outcomes), failed[0].Position, failed[0].Err)
}

func (e *BulkWriteError) Unwrap() []error {
	errs := []error{ErrBulkWriteFailed}
	for _, o := range e.Result.Failed() {
		errs = append(errs, o.Err)
	}
	return errs
}
