package ingestion

import (
	"context"
	"time"

	"github.com/poiesic/reviewpipe/storage"
)

// Notifier is told about every finished run.
type Notifier interface {
	Notify(ctx context.Context, result *Result) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, result *Result) error

func (f NotifierFunc) Notify(ctx context.Context, result *Result) error {
	return f(ctx, result)
}

// Observer receives pipeline measurements.
type Observer interface {
	ObserveStage(stage string, elapsed time.Duration, err error)
	ObserveRecords(variant string, n int)
	ObserveBulk(mode string, succeeded, failed int)
	ObserveRun(variant, state string)
}

type nopObserver struct{}

func (nopObserver) ObserveStage(string, time.Duration, error) {}
func (nopObserver) ObserveRecords(string, int)                {}
func (nopObserver) ObserveBulk(string, int, int)              {}
func (nopObserver) ObserveRun(string, string)                 {}

// Journal records runs in a storage.RunRepository.
type Journal struct {
	runs storage.RunRepository
}

var _ Notifier = (*Journal)(nil)

// NewJournal creates a Notifier that saves every run to runs.
func NewJournal(runs storage.RunRepository) *Journal {
	return &Journal{runs: runs}
}

// Notify implements Notifier.
func (j *Journal) Notify(ctx context.Context, result *Result) error {
	return j.runs.SaveRun(ctx, RunRecordOf(result))
}

// RunRecordOf summarizes a result for the run journal.
func RunRecordOf(result *Result) *storage.RunRecord {
	return &storage.RunRecord{
		RunID:      result.RunID,
		Variant:    string(result.Variant),
		State:      result.State.String(),
		Bucket:     result.Invocation.SourceBucket,
		Key:        result.Invocation.Key,
		Index:      result.Invocation.Index,
		Records:    result.Records,
		Failed:     result.Failed(),
		StatusCode: result.StatusCode,
		Message:    result.Message,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
	}
}
