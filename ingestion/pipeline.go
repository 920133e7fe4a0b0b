package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/poiesic/reviewpipe/ai"
	"github.com/poiesic/reviewpipe/core"
	"github.com/poiesic/reviewpipe/enrich"
	"github.com/poiesic/reviewpipe/index"
	"github.com/poiesic/reviewpipe/storage"
)

// Pipeline runs invocations against a blob store and a search cluster.
type Pipeline struct {
	store      storage.BlobStore
	connector  index.Connector
	classifier ai.TextClassifier
	enricher   *enrich.Enricher
	poolSize   int
	progress   enrich.ProgressFunc
	timeout    time.Duration
	format     core.Format
	notifiers  []Notifier
	observer   Observer
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithClassifier enables sentiment enrichment.
// Without a classifier records are indexed as loaded.
func WithClassifier(classifier ai.TextClassifier) Option {
	return func(p *Pipeline) error {
		p.classifier = classifier
		return nil
	}
}

// WithPoolSize sets how many classifications run concurrently.
// Default is runtime.NumCPU().
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		p.poolSize = size
		return nil
	}
}

// WithProgress installs an enrichment progress callback.
func WithProgress(fn enrich.ProgressFunc) Option {
	return func(p *Pipeline) error {
		p.progress = fn
		return nil
	}
}

// WithBulkTimeout sets the bulk request timeout.
// Default is index.DefaultTimeout.
func WithBulkTimeout(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d > 0 {
			p.timeout = d
		}
		return nil
	}
}

// WithFormat sets the encoding of persisted artifacts.
// Default is core.FormatJSON.
func WithFormat(format core.Format) Option {
	return func(p *Pipeline) error {
		if format == "" {
			format = core.FormatJSON
		}
		if _, err := core.ParseFormat(string(format)); err != nil {
			return err
		}
		p.format = format
		return nil
	}
}

// WithNotifier adds a Notifier called after every run.
func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) error {
		if n != nil {
			p.notifiers = append(p.notifiers, n)
		}
		return nil
	}
}

// WithObserver sets the receiver of pipeline measurements.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) error {
		if o != nil {
			p.observer = o
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "pipeline")
		return nil
	}
}

// NewPipeline creates a pipeline reading and writing objects in store and
// indexing through engines opened by connector.
func NewPipeline(store storage.BlobStore, connector index.Connector, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrBlobStoreRequired
	}
	if connector == nil {
		return nil, ErrConnectorRequired
	}

	p := &Pipeline{
		store:     store,
		connector: connector,
		timeout:   index.DefaultTimeout,
		format:    core.FormatJSON,
		observer:  nopObserver{},
		now:       time.Now,
		logger:    slog.Default().With("component", "pipeline"),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	// The enricher is created after options are applied so it gets the final config.
	if p.classifier != nil {
		enrichOpts := []enrich.Option{enrich.WithLogger(p.logger), enrich.WithProgress(p.progress)}
		if p.poolSize > 0 {
			enrichOpts = append(enrichOpts, enrich.WithPoolSize(p.poolSize))
		}
		enricher, err := enrich.New(p.classifier, enrichOpts...)
		if err != nil {
			return nil, err
		}
		p.enricher = enricher
	}

	return p, nil
}

// Release releases the enrichment worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.enricher != nil {
		p.enricher.Release()
	}
}

// Supports reports whether the pipeline can run variant. The metrics
// variant persists labels, so it requires a classifier.
func (p *Pipeline) Supports(variant Variant) error {
	if variant == VariantMetrics && p.enricher == nil {
		return fmt.Errorf("%w: %s variant: %w", ErrEnrichmentFailed, variant, enrich.ErrClassifierRequired)
	}
	return nil
}

// run carries the state of one invocation through the stages.
type run struct {
	variant Variant
	inv     Invocation
	batch   core.Batch
	result  *Result
	logger  *slog.Logger
}

// Run executes one invocation. The returned Result is never nil; on failure
// it carries the failed stage and the error is a *StageError.
func (p *Pipeline) Run(ctx context.Context, variant Variant, inv Invocation) (*Result, error) {
	startedAt := p.now().UTC()
	runID := ulid.MustNewDefault(startedAt).String()

	r := &run{
		variant: variant,
		inv:     inv.withDefaults(variant),
		result: &Result{
			RunID:     runID,
			Variant:   variant,
			State:     StateIdle,
			StartedAt: startedAt,
		},
		logger: p.logger.With("run_id", runID, "variant", variant),
	}
	r.result.Invocation = r.inv

	err := p.execute(ctx, r)
	p.finish(ctx, r, err)
	return r.result, err
}

func (p *Pipeline) execute(ctx context.Context, r *run) error {
	if _, err := ParseVariant(string(r.variant)); err != nil {
		return &StageError{Stage: StageLoad, Err: err}
	}
	if err := r.inv.Validate(); err != nil {
		return &StageError{Stage: StageLoad, Err: err}
	}

	stages := []struct {
		stage Stage
		next  State
		fn    func(context.Context, *run) error
	}{
		{StageLoad, StateLoaded, p.load},
		{StageEnrich, StateEnriched, p.enrich},
		{StageIndex, StateIndexed, p.index},
		{StagePersist, StatePersisted, p.persist},
	}

	for _, s := range stages {
		start := time.Now()
		err := s.fn(ctx, r)
		p.observer.ObserveStage(string(s.stage), time.Since(start), err)
		if err != nil {
			return &StageError{Stage: s.stage, Err: err}
		}
		r.result.State = s.next
		r.logger.Debug("stage complete", "stage", s.stage, "state", s.next, "elapsed", time.Since(start))
	}
	return nil
}

func (p *Pipeline) load(ctx context.Context, r *run) error {
	data, err := p.store.Get(ctx, r.inv.SourceBucket, r.inv.Key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s/%s: %w", ErrSourceNotFound, r.inv.SourceBucket, r.inv.Key, err)
		}
		return fmt.Errorf("get %s/%s: %w", r.inv.SourceBucket, r.inv.Key, err)
	}

	batch, err := core.DecodeBatch(data)
	if err != nil {
		return fmt.Errorf("decode %s/%s: %w", r.inv.SourceBucket, r.inv.Key, err)
	}
	r.batch = batch
	r.result.Records = len(batch)
	r.logger.Info("batch loaded", "bucket", r.inv.SourceBucket, "key", r.inv.Key, "records", len(batch))
	return nil
}

func (p *Pipeline) enrich(ctx context.Context, r *run) error {
	if r.variant.Mode() == index.ModeCreate {
		r.result.Assigned = core.AssignIDs(r.batch)
		if r.result.Assigned > 0 {
			r.logger.Debug("assigned identifiers", "assigned", r.result.Assigned)
		}
	}

	if err := p.Supports(r.variant); err != nil {
		return err
	}
	if p.enricher == nil {
		r.logger.Debug("no classifier configured, skipping enrichment")
		return nil
	}
	if err := p.enricher.EnrichIn(ctx, r.batch, r.inv.Language); err != nil {
		return fmt.Errorf("%w: %w", ErrEnrichmentFailed, err)
	}
	return nil
}

func (p *Pipeline) index(ctx context.Context, r *run) error {
	engine, err := p.connector.Connect(ctx, r.inv.SearchEndpoint)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", r.inv.SearchEndpoint, err)
	}

	indexer, err := index.NewIndexer(engine, index.WithTimeout(p.timeout), index.WithLogger(r.logger))
	if err != nil {
		return err
	}

	mode := r.variant.Mode()
	result, err := indexer.Submit(ctx, r.batch, r.inv.Index, mode)
	if result == nil {
		return err
	}
	r.result.Bulk = result

	failed := len(result.Failed())
	p.observer.ObserveBulk(mode.String(), len(result.Outcomes)-failed, failed)
	if err != nil || failed > 0 {
		for _, o := range result.Failed() {
			r.logger.Warn("document not written", "position", o.Position, "id", o.ID, "err", o.Err)
		}
		return &BulkWriteError{Result: result}
	}
	return nil
}

func (p *Pipeline) persist(ctx context.Context, r *run) error {
	if r.inv.DestinationBucket == "" {
		r.logger.Debug("no destination bucket, skipping persist")
		return nil
	}

	records := []*core.Record(r.batch)
	if r.variant == VariantMetrics {
		projected, err := enrich.Project(r.batch)
		if err != nil {
			return err
		}
		records = projected
	}

	data, err := core.EncodeBatch(records, p.format)
	if err != nil {
		return err
	}
	if err := p.store.Put(ctx, r.inv.DestinationBucket, r.inv.DestinationKey, data); err != nil {
		return fmt.Errorf("put %s/%s: %w", r.inv.DestinationBucket, r.inv.DestinationKey, err)
	}

	r.result.ArtifactBucket = r.inv.DestinationBucket
	r.result.ArtifactKey = r.inv.DestinationKey
	r.logger.Info("artifact persisted", "bucket", r.inv.DestinationBucket, "key", r.inv.DestinationKey, "bytes", len(data))
	return nil
}

func (p *Pipeline) finish(ctx context.Context, r *run, err error) {
	res := r.result
	res.FinishedAt = p.now().UTC()
	res.Err = err

	if err != nil {
		var stageErr *StageError
		if errors.As(err, &stageErr) {
			res.Stage = stageErr.Stage
		}
		res.State = StateFailed
		res.StatusCode = StatusFailed
		res.Message = err.Error()
		r.logger.Error("run failed", "stage", res.Stage, "err", err)
	} else {
		res.State = StateDone
		res.StatusCode = StatusOK
		res.Message = r.variant.completionMessage()
		p.observer.ObserveRecords(string(r.variant), res.Records)
		r.logger.Info("run complete", "records", res.Records, "assigned", res.Assigned, "elapsed", res.FinishedAt.Sub(res.StartedAt))
	}
	p.observer.ObserveRun(string(r.variant), res.State.String())

	for _, n := range p.notifiers {
		if nerr := n.Notify(ctx, res); nerr != nil {
			r.logger.Warn("notifier failed", "err", nerr)
		}
	}
}
