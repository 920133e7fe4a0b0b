package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/reviewpipe/core"
)

// DefaultTimeout bounds a bulk request.
const DefaultTimeout = 60 * time.Second

// Indexer submits batches to a SearchEngine.
type Indexer struct {
	engine  SearchEngine
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithTimeout sets the bulk request timeout.
// Default is DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(ix *Indexer) {
		if d > 0 {
			ix.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Indexer) {
		if logger != nil {
			ix.logger = logger.With("component", "indexer")
		}
	}
}

// NewIndexer creates an Indexer writing to engine.
func NewIndexer(engine SearchEngine, opts ...Option) (*Indexer, error) {
	if engine == nil {
		return nil, ErrEngineRequired
	}
	ix := &Indexer{
		engine:  engine,
		timeout: DefaultTimeout,
		logger:  slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix, nil
}

// Submit writes batch to index in one bulk request and reports one Outcome
// per record. Per-document failures are reported only through the result.
// A failed request marks every submitted record failed and is also returned
// as the error.
func (ix *Indexer) Submit(ctx context.Context, batch core.Batch, index string, mode Mode) (*BulkResult, error) {
	if index == "" {
		return nil, ErrIndexRequired
	}

	plan := NewPlan(batch, index, mode)
	result := &BulkResult{
		Index:    index,
		Mode:     mode,
		Outcomes: make([]Outcome, len(batch)),
	}
	byID := make(map[string]int, plan.Accepted())
	for i, rec := range batch {
		id, _ := rec.ID()
		result.Outcomes[i] = Outcome{Position: i, ID: id}
		if err := plan.Rejection(i); err != nil {
			if errors.Is(err, core.ErrMissingIdentifier) {
				result.Outcomes[i].ID = 0
			}
			result.Outcomes[i].Err = err
			ix.logger.Warn("record rejected", "position", i, "err", err)
			continue
		}
		byID[id.String()] = i
	}

	if plan.Accepted() == 0 {
		ix.logger.Debug("nothing to submit", "index", index, "records", len(batch))
		return result, nil
	}

	ctx, cancel := context.WithTimeout(ctx, ix.timeout)
	defer cancel()

	start := time.Now()
	items, err := ix.engine.Bulk(ctx, plan.Operations(), ix.timeout)
	result.Took = time.Since(start)
	if err != nil {
		for _, pos := range byID {
			result.Outcomes[pos].Err = err
		}
		ix.logger.Error("bulk request failed", "index", index, "mode", mode, "operations", plan.Accepted(), "err", err)
		return result, fmt.Errorf("bulk request to %s: %w", index, err)
	}

	reported := make(map[int]bool, len(items))
	for _, item := range items {
		pos, ok := byID[item.ID]
		if !ok {
			ix.logger.Warn("ignoring bulk item for unknown document", "id", item.ID, "status", item.Status)
			continue
		}
		reported[pos] = true
		result.Outcomes[pos].Err = item.Err
	}
	for _, pos := range byID {
		if !reported[pos] {
			result.Outcomes[pos].Err = ErrMissingOutcome
		}
	}

	failed := len(result.Failed())
	ix.logger.Info("bulk request complete",
		"index", index,
		"mode", mode,
		"records", len(batch),
		"failed", failed,
		"took", result.Took)
	return result, nil
}
