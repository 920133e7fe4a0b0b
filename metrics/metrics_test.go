package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/reviewpipe/ai"
	"github.com/poiesic/reviewpipe/ai/mock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New()

	m.ObserveRecords("index", 3)
	m.ObserveRecords("index", 2)
	m.ObserveBulk("create", 4, 1)
	m.ObserveRun("index", "done")
	m.ObserveStage("load", 20*time.Millisecond, nil)
	m.ObserveStage("index", time.Second, errors.New("boom"))

	assert.Equal(t, 5.0, testutil.ToFloat64(m.RecordsProcessed.WithLabelValues("index")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.BulkOutcomes.WithLabelValues("create", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BulkOutcomes.WithLabelValues("create", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("index", "done")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.StageDuration))
}

func TestInstrumentClassifier(t *testing.T) {
	m := New()
	classifier := mock.NewMockClassifier().WithClassifyFunc(func(ctx context.Context, text, language string) (ai.Label, error) {
		if text == "fail" {
			return "", ai.ErrClassification
		}
		return ai.LabelPositive, nil
	})
	c := m.InstrumentClassifier(classifier)

	label, err := c.Classify(context.Background(), "bueno", "es")
	require.NoError(t, err)
	assert.Equal(t, ai.LabelPositive, label)

	_, err = c.Classify(context.Background(), "fail", "es")
	assert.ErrorIs(t, err, ai.ErrClassification)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClassifierCalls.WithLabelValues("ok", "POSITIVE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClassifierCalls.WithLabelValues("error", "")))
	assert.Equal(t, 2, classifier.CallCount())
}

func TestWriteToTextfile(t *testing.T) {
	m := New()
	m.ObserveRun("metrics", "failed")

	path := filepath.Join(t.TempDir(), "reviewpipe.prom")
	require.NoError(t, m.WriteToTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `reviewpipe_runs_total{state="failed",variant="metrics"} 1`)
}

func TestNewIsolatedRegistries(t *testing.T) {
	a, b := New(), New()
	a.ObserveRun("index", "done")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Runs.WithLabelValues("index", "done")))
}
