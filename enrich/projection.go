package enrich

import (
	"fmt"

	"github.com/poiesic/reviewpipe/core"
)

// Project reduces each record to its id and Sentiment fields, in that order.
// Every record must carry an id; otherwise core.ErrMissingIdentifier is
// returned and no projection is produced. A record without a label projects
// to its id alone.
func Project(batch core.Batch) ([]*core.Record, error) {
	if err := core.RequireIdentifiers(batch); err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}
	out := make([]*core.Record, 0, len(batch))
	for _, rec := range batch {
		id, _ := rec.ID()
		p := core.NewRecord()
		p.SetID(id)
		if label, ok := rec.Get(core.FieldSentiment); ok {
			p.Set(core.FieldSentiment, label)
		}
		out = append(out, p)
	}
	return out, nil
}
