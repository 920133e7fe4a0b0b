package index

import (
	"iter"

	"github.com/poiesic/reviewpipe/core"
)

// Plan is the set of operations derived from a batch.
type Plan struct {
	batch    core.Batch
	index    string
	mode     Mode
	rejected map[int]error
}

// NewPlan checks the batch's identifiers and prepares operations for every
// addressable record.
func NewPlan(batch core.Batch, index string, mode Mode) *Plan {
	p := &Plan{batch: batch, index: index, mode: mode, rejected: make(map[int]error)}
	for _, issue := range core.CheckIdentifiers(batch) {
		p.rejected[issue.Position] = issue.Err
	}
	return p
}

// Operations yields one operation per accepted record, in batch order. The
// sequence is computed on demand and can be iterated more than once.
func (p *Plan) Operations() iter.Seq[Operation] {
	return func(yield func(Operation) bool) {
		for i, rec := range p.batch {
			if _, bad := p.rejected[i]; bad {
				continue
			}
			id, _ := rec.ID()
			op := Operation{Action: ActionIndex, Index: p.index, ID: id, Document: rec}
			if p.mode == ModeUpdate {
				op.Action = ActionUpdate
			}
			if !yield(op) {
				return
			}
		}
	}
}

// Accepted returns how many records produce an operation.
func (p *Plan) Accepted() int {
	return len(p.batch) - len(p.rejected)
}

// Rejection returns why the record at position was not planned, or nil.
func (p *Plan) Rejection(position int) error {
	return p.rejected[position]
}
