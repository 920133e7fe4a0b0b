package enrich

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/reviewpipe/ai"
	"github.com/poiesic/reviewpipe/core"
)

// ProgressFunc is called after each record is classified.
type ProgressFunc func(done, total int)

// Enricher classifies review text and attaches sentiment labels.
type Enricher struct {
	classifier ai.TextClassifier
	pool       *ants.Pool
	language   string
	progress   ProgressFunc
	logger     *slog.Logger
}

// Option configures an Enricher.
type Option func(*Enricher) error

// WithPoolSize sets how many classifications run concurrently.
// Default is runtime.NumCPU(), with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(e *Enricher) error {
		if size < 1 {
			size = 1
		}
		if e.pool != nil {
			e.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		e.pool = pool
		return nil
	}
}

// WithLanguage sets the language code passed to the classifier.
// Default is ai.DefaultLanguage.
func WithLanguage(language string) Option {
	return func(e *Enricher) error {
		if language != "" {
			e.language = language
		}
		return nil
	}
}

// WithProgress installs a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Enricher) error {
		e.progress = fn
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Enricher) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger.With("component", "enricher")
		return nil
	}
}

// New creates an Enricher around classifier.
func New(classifier ai.TextClassifier, opts ...Option) (*Enricher, error) {
	if classifier == nil {
		return nil, ErrClassifierRequired
	}

	pool, err := ants.NewPool(max(runtime.NumCPU(), 1))
	if err != nil {
		return nil, err
	}

	e := &Enricher{
		classifier: classifier,
		pool:       pool,
		language:   ai.DefaultLanguage,
		logger:     slog.Default().With("component", "enricher"),
	}

	for _, opt := range opts {
		if optErr := opt(e); optErr != nil {
			e.Release()
			return nil, optErr
		}
	}

	return e, nil
}

// Language returns the language code passed to the classifier.
func (e *Enricher) Language() string {
	return e.language
}

// Enrich classifies every record and stores the label under
// core.FieldSentiment. On failure it returns a *RecordError for the lowest
// failing position and the batch is left unmodified.
func (e *Enricher) Enrich(ctx context.Context, batch core.Batch) error {
	return e.EnrichIn(ctx, batch, e.language)
}

// EnrichIn is Enrich with an explicit language code.
func (e *Enricher) EnrichIn(ctx context.Context, batch core.Batch, language string) error {
	if language == "" {
		language = e.language
	}
	total := len(batch)
	if total == 0 {
		return nil
	}

	labels := make([]ai.Label, total)
	errs := make([]error, total)

	var (
		wg     sync.WaitGroup
		failed atomic.Bool
		done   atomic.Int64
	)

	for i, rec := range batch {
		// Records are submitted in order, so once any failure is seen no
		// later record can be the lowest failing one.
		if failed.Load() {
			break
		}

		text, ok := rec.Text(core.FieldReviewBody)
		if !ok || strings.TrimSpace(text) == "" {
			errs[i] = ErrMissingText
			failed.Store(true)
			break
		}

		wg.Add(1)
		submitErr := e.pool.Submit(func() {
			defer wg.Done()
			label, err := e.classifier.Classify(ctx, text, language)
			if err != nil {
				errs[i] = err
				failed.Store(true)
				return
			}
			labels[i] = label
			n := int(done.Add(1))
			if e.progress != nil {
				e.progress(n, total)
			}
		})
		if submitErr != nil {
			wg.Done()
			errs[i] = submitErr
			failed.Store(true)
			break
		}
	}
	wg.Wait()

	for i, err := range errs {
		if err == nil {
			continue
		}
		recErr := &RecordError{Index: i, Err: err}
		if id, ok := batch[i].ID(); ok {
			recErr.ID = id
		}
		if errors.Is(err, ai.ErrClassification) {
			e.logger.Error("classification failed", "index", i, "err", err)
		} else {
			e.logger.Warn("record not enriched", "index", i, "err", err)
		}
		return recErr
	}

	for i, rec := range batch {
		rec.Set(core.FieldSentiment, labels[i].String())
	}

	e.logger.Debug("enriched batch", "records", total, "language", language)
	return nil
}

// Release releases the worker pool.
// The Enricher should not be used after calling Release.
func (e *Enricher) Release() {
	if e.pool != nil {
		e.pool.Release()
	}
}
