package ingestion

import (
	"context"
	"errors"
	"iter"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/reviewpipe/ai"
	"github.com/poiesic/reviewpipe/ai/mock"
	"github.com/poiesic/reviewpipe/core"
	"github.com/poiesic/reviewpipe/enrich"
	"github.com/poiesic/reviewpipe/index"
	"github.com/poiesic/reviewpipe/storage"
	"github.com/poiesic/reviewpipe/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEngine acknowledges every operation except those listed in reject.
type testEngine struct {
	mu      sync.Mutex
	ops     []index.Operation
	reject  map[string]bool
	failAll error
}

func (e *testEngine) Bulk(ctx context.Context, ops iter.Seq[index.Operation], timeout time.Duration) ([]index.ItemResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failAll != nil {
		return nil, e.failAll
	}
	var items []index.ItemResult
	for op := range ops {
		e.ops = append(e.ops, op)
		item := index.ItemResult{ID: op.ID.String(), Status: 200}
		if e.reject[item.ID] {
			item.Status = 404
			item.Err = &index.ItemError{Status: 404, Type: "document_missing_exception"}
		}
		items = append(items, item)
	}
	return items, nil
}

// testConnector hands out one engine and remembers the endpoint.
type testConnector struct {
	engine   *testEngine
	err      error
	endpoint string
}

func (c *testConnector) Connect(ctx context.Context, endpoint string) (index.SearchEngine, error) {
	c.endpoint = endpoint
	if c.err != nil {
		return nil, c.err
	}
	return c.engine, nil
}

// testObserver counts what the pipeline reports.
type testObserver struct {
	mu     sync.Mutex
	stages []string
	runs   []string
	ok     int
	failed int
}

func (o *testObserver) ObserveStage(stage string, _ time.Duration, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages = append(o.stages, stage)
}

func (o *testObserver) ObserveRecords(string, int) {}

func (o *testObserver) ObserveBulk(_ string, succeeded, failed int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ok += succeeded
	o.failed += failed
}

func (o *testObserver) ObserveRun(variant, state string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs = append(o.runs, variant+":"+state)
}

type fixture struct {
	store     *badger.BlobStore
	connector *testConnector
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	store, backend, err := badger.NewMemoryBlobStore()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return &fixture{
		store:     store,
		connector: &testConnector{engine: &testEngine{}},
	}
}

func (f *fixture) put(t *testing.T, bucket, key, data string) {
	t.Helper()
	require.NoError(t, f.store.Put(context.Background(), bucket, key, []byte(data)))
}

func (f *fixture) load(t *testing.T, bucket, key string) core.Batch {
	t.Helper()
	data, err := f.store.Get(context.Background(), bucket, key)
	require.NoError(t, err)
	batch, err := core.DecodeBatch(data)
	require.NoError(t, err)
	return batch
}

func (f *fixture) pipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	p, err := NewPipeline(f.store, f.connector, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func invocation() Invocation {
	return Invocation{
		SourceBucket:      "raw",
		DestinationBucket: "enriched",
		Key:               "reviews.json",
		Index:             "reviews",
		SearchEndpoint:    "search.example.com",
	}
}

const sourceReviews = `[{"review_body":"Excelente producto","stars":5},{"review_body":"Muy malo","stars":1},{"id":7,"review_body":"Normal","stars":3}]`

func TestNewPipeline_Requirements(t *testing.T) {
	_, err := NewPipeline(nil, &testConnector{})
	assert.ErrorIs(t, err, ErrBlobStoreRequired)

	store, backend, err := badger.NewMemoryBlobStore()
	require.NoError(t, err)
	defer backend.Close()

	_, err = NewPipeline(store, nil)
	assert.ErrorIs(t, err, ErrConnectorRequired)

	_, err = NewPipeline(store, &testConnector{}, WithFormat("xml"))
	assert.ErrorIs(t, err, core.ErrUnknownFormat)
}

func TestRun_IndexVariant(t *testing.T) {
	f := setupFixture(t)
	f.put(t, "raw", "reviews.json", sourceReviews)

	classifier := mock.NewMockClassifier().
		WithLabel("Excelente producto", ai.LabelPositive).
		WithLabel("Muy malo", ai.LabelNegative).
		WithLabel("Normal", ai.LabelNeutral)
	observer := &testObserver{}
	var notified []*Result
	p := f.pipeline(t,
		WithClassifier(classifier),
		WithObserver(observer),
		WithNotifier(NotifierFunc(func(ctx context.Context, r *Result) error {
			notified = append(notified, r)
			return nil
		})))

	result, err := p.Run(context.Background(), VariantIndex, invocation())
	require.NoError(t, err)

	assert.True(t, result.OK())
	assert.Equal(t, StatusOK, result.StatusCode)
	assert.Equal(t, "Indexing completed!", result.Message)
	assert.Equal(t, 3, result.Records)
	assert.Equal(t, 2, result.Assigned)
	assert.Len(t, result.RunID, 26)
	assert.Equal(t, "enriched", result.ArtifactBucket)
	assert.Equal(t, "reviews.json", result.ArtifactKey)
	assert.Equal(t, "search.example.com", f.connector.endpoint)

	ops := f.connector.engine.ops
	require.Len(t, ops, 3)
	assert.Equal(t, []core.ID{1, 2, 7}, []core.ID{ops[0].ID, ops[1].ID, ops[2].ID})
	for _, op := range ops {
		assert.Equal(t, index.ActionIndex, op.Action)
	}

	persisted := f.load(t, "enriched", "reviews.json")
	require.Len(t, persisted, 3)
	assert.Equal(t, []string{"review_body", "stars", "id", "Sentiment"}, persisted[0].Keys())
	label, _ := persisted[1].Get(core.FieldSentiment)
	assert.Equal(t, "NEGATIVE", label)

	assert.Equal(t, []string{"load", "enrich", "index", "persist"}, observer.stages)
	assert.Equal(t, []string{"index:done"}, observer.runs)
	assert.Equal(t, 3, observer.ok)
	require.Len(t, notified, 1)
	assert.Same(t, result, notified[0])
}

func TestRun_UpdateVariantRequiresIDs(t *testing.T) {
	f := setupFixture(t)
	f.put(t, "raw", "reviews.json", `[{"id":1,"review_body":"a"},{"review_body":"b"},{"id":3,"review_body":"c"}]`)

	p := f.pipeline(t)
	result, err := p.Run(context.Background(), VariantUpdate, invocation())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBulkWriteFailed)
	assert.ErrorIs(t, err, core.ErrMissingIdentifier)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageIndex, stageErr.Stage)

	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, StatusFailed, result.StatusCode)
	assert.Zero(t, result.Assigned)
	assert.Equal(t, 1, result.Failed())

	// Siblings of the rejected record were still written.
	ops := f.connector.engine.ops
	require.Len(t, ops, 2)
	assert.Equal(t, index.ActionUpdate, ops[0].Action)

	_, err = f.store.Get(context.Background(), "enriched", "reviews.json")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRun_UpdateVariantWithoutDestination(t *testing.T) {
	f := setupFixture(t)
	f.put(t, "raw", "reviews.json", `[{"id":1,"review_body":"a"}]`)

	inv := invocation()
	inv.DestinationBucket = ""
	result, err := f.pipeline(t).Run(context.Background(), VariantUpdate, inv)
	require.NoError(t, err)
	assert.Equal(t, "Updating completed!", result.Message)
	assert.Empty(t, result.ArtifactKey)
}

func TestRun_MetricsVariant(t *testing.T) {
	f := setupFixture(t)
	f.put(t, "raw", "reviews.json", `[{"id":2,"review_body":"Genial"},{"id":1,"review_body":"Terrible"}]`)

	classifier := mock.NewMockClassifier().
		WithLabel("Genial", ai.LabelPositive).
		WithLabel("Terrible", ai.LabelNegative)
	result, err := f.pipeline(t, WithClassifier(classifier)).Run(context.Background(), VariantMetrics, invocation())
	require.NoError(t, err)
	assert.Equal(t, "Metrics have been calculated and uploaded!", result.Message)
	assert.Equal(t, MetricsKey, result.ArtifactKey)

	data, err := f.store.Get(context.Background(), "enriched", MetricsKey)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":2,"Sentiment":"POSITIVE"},{"id":1,"Sentiment":"NEGATIVE"}]`, string(data))
}

func TestRun_MetricsVariantRequiresClassifier(t *testing.T) {
	f := setupFixture(t)
	f.put(t, "raw", "reviews.json", `[{"id":2,"review_body":"Genial"},{"id":1,"review_body":"Terrible"}]`)

	p := f.pipeline(t)
	assert.ErrorIs(t, p.Supports(VariantMetrics), enrich.ErrClassifierRequired)
	assert.NoError(t, p.Supports(VariantIndex))
	assert.NoError(t, p.Supports(VariantUpdate))

	result, err := p.Run(context.Background(), VariantMetrics, invocation())
	assert.ErrorIs(t, err, ErrEnrichmentFailed)
	assert.ErrorIs(t, err, enrich.ErrClassifierRequired)
	assert.Equal(t, StageEnrich, result.Stage)
	assert.Equal(t, StatusFailed, result.StatusCode)
	assert.Nil(t, f.connector.engine.ops)

	_, err = f.store.Get(context.Background(), "enriched", MetricsKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRun_SourceNotFound(t *testing.T) {
	f := setupFixture(t)
	observer := &testObserver{}

	result, err := f.pipeline(t, WithObserver(observer)).Run(context.Background(), VariantIndex, invocation())
	assert.ErrorIs(t, err, ErrSourceNotFound)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, StageLoad, result.Stage)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, []string{"index:failed"}, observer.runs)
	assert.Nil(t, f.connector.engine.ops)
}

func TestRun_MalformedSource(t *testing.T) {
	f := setupFixture(t)
	f.put(t, "raw", "reviews.json", `[{"review_body":`)

	_, err := f.pipeline(t).Run(context.Background(), VariantIndex, invocation())
	assert.ErrorIs(t, err, core.ErrSerialization)
}

func TestRun_EnrichmentFailure(t *testing.T) {
	f := setupFixture(t)
	f.put(t, "raw", "reviews.json", sourceReviews)

	classifier := mock.NewMockClassifier().WithClassifyFunc(func(ctx context.Context, text, language string) (ai.Label, error) {
		if text == "Muy malo" {
			return "", ai.ErrClassification
		}
		return ai.LabelNeutral, nil
	})
	result, err := f.pipeline(t, WithClassifier(classifier), WithPoolSize(1)).Run(context.Background(), VariantIndex, invocation())

	assert.ErrorIs(t, err, ErrEnrichmentFailed)
	assert.ErrorIs(t, err, ai.ErrClassification)
	var recErr *enrich.RecordError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, 1, recErr.Index)
	assert.Equal(t, StageEnrich, result.Stage)
	assert.Nil(t, f.connector.engine.ops)
}

func TestRun_SecretFailure(t *testing.T) {
	f := setupFixture(t)
	f.put(t, "raw", "reviews.json", sourceReviews)
	f.connector.err = storage.ErrSecretNotFound

	result, err := f.pipeline(t).Run(context.Background(), VariantIndex, invocation())
	assert.ErrorIs(t, err, storage.ErrSecretNotFound)
	assert.Equal(t, StageIndex, result.Stage)
}

func TestRun_TransportFailure(t *testing.T) {
	f := setupFixture(t)
	f.put(t, "raw", "reviews.json", sourceReviews)
	boom := errors.New("connection reset by peer")
	f.connector.engine.failAll = boom

	result, err := f.pipeline(t).Run(context.Background(), VariantIndex, invocation())
	assert.ErrorIs(t, err, ErrBulkWriteFailed)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, result.Failed())
}

func TestRun_PartialBulkFailure(t *testing.T) {
	f := setupFixture(t)
	f.put(t, "raw", "reviews.json", `[{"id":1,"review_body":"a"},{"id":2,"review_body":"b"}]`)
	f.connector.engine.reject = map[string]bool{"2": true}

	result, err := f.pipeline(t).Run(context.Background(), VariantUpdate, invocation())
	var bulkErr *BulkWriteError
	require.ErrorAs(t, err, &bulkErr)
	failed := bulkErr.Result.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, core.ID(2), failed[0].ID)
	assert.Contains(t, result.Message, "1 of 2 documents failed")
}

func TestRun_InvalidInvocation(t *testing.T) {
	f := setupFixture(t)

	result, err := f.pipeline(t).Run(context.Background(), VariantIndex, Invocation{SourceBucket: "raw"})
	assert.ErrorIs(t, err, ErrInvalidInvocation)
	assert.Contains(t, err.Error(), "index, key, search_endpoint")
	assert.Equal(t, StatusFailed, result.StatusCode)

	_, err = f.pipeline(t).Run(context.Background(), Variant("reindex"), invocation())
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestRun_NotifierErrorDoesNotFailRun(t *testing.T) {
	f := setupFixture(t)
	f.put(t, "raw", "reviews.json", sourceReviews)

	p := f.pipeline(t, WithNotifier(NotifierFunc(func(context.Context, *Result) error {
		return errors.New("broker unavailable")
	})))
	result, err := p.Run(context.Background(), VariantIndex, invocation())
	require.NoError(t, err)
	assert.True(t, result.OK())
}

func TestRun_RerunIsIdempotent(t *testing.T) {
	f := setupFixture(t)
	f.put(t, "raw", "reviews.json", sourceReviews)
	p := f.pipeline(t, WithClassifier(mock.NewMockClassifier()))

	_, err := p.Run(context.Background(), VariantIndex, invocation())
	require.NoError(t, err)
	first := f.load(t, "enriched", "reviews.json")

	_, err = p.Run(context.Background(), VariantIndex, invocation())
	require.NoError(t, err)
	second := f.load(t, "enriched", "reviews.json")

	require.Len(t, second, len(first))
	for i := range first {
		a, _ := first[i].ID()
		b, _ := second[i].ID()
		assert.Equal(t, a, b)
	}
}

func TestRun_JournalRecordsRun(t *testing.T) {
	f := setupFixture(t)
	f.put(t, "raw", "reviews.json", sourceReviews)

	_, backend, err := badger.NewMemoryBlobStore()
	require.NoError(t, err)
	defer backend.Close()
	runs := badger.NewRunRepository(backend)

	result, err := f.pipeline(t, WithNotifier(NewJournal(runs))).Run(context.Background(), VariantIndex, invocation())
	require.NoError(t, err)

	saved, err := runs.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, result.RunID, saved[0].RunID)
	assert.Equal(t, "done", saved[0].State)
	assert.Equal(t, "index", saved[0].Variant)
	assert.Equal(t, "reviews.json", saved[0].Key)
	assert.Equal(t, 3, saved[0].Records)
}

func TestParseVariant(t *testing.T) {
	for _, name := range []string{"index", "UPDATE", " metrics "} {
		_, err := ParseVariant(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseVariant("delete")
	assert.ErrorIs(t, err, ErrUnknownVariant)

	assert.Equal(t, index.ModeCreate, VariantIndex.Mode())
	assert.Equal(t, index.ModeUpdate, VariantMetrics.Mode())
}

func TestInvocationDefaults(t *testing.T) {
	inv := Invocation{Key: "in.json"}.withDefaults(VariantIndex)
	assert.Equal(t, "in.json", inv.DestinationKey)
	assert.Equal(t, ai.DefaultLanguage, inv.Language)

	inv = Invocation{Key: "in.json", Language: "en"}.withDefaults(VariantMetrics)
	assert.Equal(t, MetricsKey, inv.DestinationKey)
	assert.Equal(t, "en", inv.Language)
}

func TestStateString(t *testing.T) {
	names := make([]string, 0, 7)
	for s := StateIdle; s <= StateFailed; s++ {
		names = append(names, s.String())
	}
	assert.True(t, slices.Equal(names, []string{"idle", "loaded", "enriched", "indexed", "persisted", "done", "failed"}))
}
