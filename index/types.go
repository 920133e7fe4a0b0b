package index

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/poiesic/reviewpipe/core"
)

// Mode selects how records are written.
type Mode int

const (
	// ModeCreate writes full documents, replacing any existing version.
	ModeCreate Mode = iota
	// ModeUpdate merges records into existing documents.
	ModeUpdate
)

func (m Mode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeUpdate:
		return "update"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Action is the bulk action name of an operation.
type Action string

const (
	// ActionIndex is a full-document upsert.
	ActionIndex Action = "index"
	// ActionUpdate is a partial document update.
	ActionUpdate Action = "update"
)

// Operation is one document write in a bulk request.
type Operation struct {
	Action Action
	Index  string
	ID     core.ID
	// Document is the full source for ActionIndex and the partial doc for
	// ActionUpdate.
	Document *core.Record
}

// ItemResult is the engine's report for one operation.
type ItemResult struct {
	ID     string
	Status int
	// Err is nil when the operation succeeded.
	Err error
}

// SearchEngine executes bulk requests.
type SearchEngine interface {
	// Bulk sends every operation in ops as a single request bounded by
	// timeout. A non-nil error means the request as a whole failed;
	// otherwise one ItemResult is returned per item the engine reported.
	Bulk(ctx context.Context, ops iter.Seq[Operation], timeout time.Duration) ([]ItemResult, error)
}

// Connector opens a SearchEngine for an endpoint.
type Connector interface {
	Connect(ctx context.Context, endpoint string) (SearchEngine, error)
}

// Outcome is the result for one record of a submitted batch.
type Outcome struct {
	// Position is the record's index in the batch.
	Position int
	// ID is zero for records rejected for lacking an id.
	ID core.ID
	// Err is nil when the write succeeded.
	Err error
}

// Succeeded reports whether the write succeeded.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// BulkResult holds one Outcome per record, in batch order.
type BulkResult struct {
	Index    string
	Mode     Mode
	Outcomes []Outcome
	Took     time.Duration
}

// OK reports whether every record was written.
func (r *BulkResult) OK() bool {
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			return false
		}
	}
	return true
}

// Failed returns the failed outcomes in batch order.
func (r *BulkResult) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			failed = append(failed, o)
		}
	}
	return failed
}

// Succeeded returns how many records were written.
func (r *BulkResult) Succeeded() int {
	return len(r.Outcomes) - len(r.Failed())
}
