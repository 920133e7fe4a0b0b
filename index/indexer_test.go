package index

import (
	"context"
	"errors"
	"iter"
	"slices"
	"testing"
	"time"

	"github.com/poiesic/reviewpipe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine records submitted operations and replies with a scripted response.
type fakeEngine struct {
	ops     []Operation
	timeout time.Duration
	calls   int
	respond func(ops []Operation) ([]ItemResult, error)
}

func (f *fakeEngine) Bulk(ctx context.Context, ops iter.Seq[Operation], timeout time.Duration) ([]ItemResult, error) {
	f.calls++
	f.timeout = timeout
	f.ops = slices.Collect(ops)
	if f.respond != nil {
		return f.respond(f.ops)
	}
	items := make([]ItemResult, len(f.ops))
	for i, op := range f.ops {
		items[i] = ItemResult{ID: op.ID.String(), Status: 201}
	}
	return items, nil
}

func batchOf(ids ...any) core.Batch {
	batch := make(core.Batch, len(ids))
	for i, id := range ids {
		if id == nil {
			batch[i] = core.RecordOf(core.FieldReviewBody, "sin id")
			continue
		}
		batch[i] = core.RecordOf(core.FieldID, id, core.FieldReviewBody, "texto")
	}
	return batch
}

func TestNewIndexer_RequiresEngine(t *testing.T) {
	_, err := NewIndexer(nil)
	assert.ErrorIs(t, err, ErrEngineRequired)
}

func TestSubmit_CreateMode(t *testing.T) {
	engine := &fakeEngine{}
	ix, err := NewIndexer(engine)
	require.NoError(t, err)

	result, err := ix.Submit(context.Background(), batchOf(1, 2, 3), "reviews", ModeCreate)
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, 3, result.Succeeded())
	require.Len(t, result.Outcomes, 3)
	for i, o := range result.Outcomes {
		assert.Equal(t, i, o.Position)
		assert.Equal(t, core.ID(i+1), o.ID)
	}

	require.Len(t, engine.ops, 3)
	for _, op := range engine.ops {
		assert.Equal(t, ActionIndex, op.Action)
		assert.Equal(t, "reviews", op.Index)
	}
	assert.Equal(t, DefaultTimeout, engine.timeout)
}

func TestSubmit_UpdateMode(t *testing.T) {
	engine := &fakeEngine{}
	ix, err := NewIndexer(engine, WithTimeout(5*time.Second))
	require.NoError(t, err)

	_, err = ix.Submit(context.Background(), batchOf(4), "reviews", ModeUpdate)
	require.NoError(t, err)
	require.Len(t, engine.ops, 1)
	assert.Equal(t, ActionUpdate, engine.ops[0].Action)
	assert.Equal(t, core.ID(4), engine.ops[0].ID)
	assert.Equal(t, 5*time.Second, engine.timeout)
}

func TestSubmit_MatchesOutcomesByID(t *testing.T) {
	engine := &fakeEngine{respond: func(ops []Operation) ([]ItemResult, error) {
		// Reversed order with the middle document failing.
		return []ItemResult{
			{ID: "3", Status: 200},
			{ID: "2", Status: 400, Err: &ItemError{Status: 400, Type: "mapper_parsing_exception", Reason: "bad"}},
			{ID: "1", Status: 200},
		}, nil
	}}
	ix, err := NewIndexer(engine)
	require.NoError(t, err)

	result, err := ix.Submit(context.Background(), batchOf(1, 2, 3), "reviews", ModeCreate)
	require.NoError(t, err)
	assert.False(t, result.OK())

	failed := result.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].Position)
	assert.Equal(t, core.ID(2), failed[0].ID)
	var itemErr *ItemError
	require.ErrorAs(t, failed[0].Err, &itemErr)
	assert.Equal(t, "mapper_parsing_exception", itemErr.Type)
}

func TestSubmit_MissingAndUnknownItems(t *testing.T) {
	engine := &fakeEngine{respond: func(ops []Operation) ([]ItemResult, error) {
		return []ItemResult{
			{ID: "1", Status: 201},
			{ID: "99", Status: 201},
		}, nil
	}}
	ix, err := NewIndexer(engine)
	require.NoError(t, err)

	result, err := ix.Submit(context.Background(), batchOf(1, 2), "reviews", ModeCreate)
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 2)
	assert.NoError(t, result.Outcomes[0].Err)
	assert.ErrorIs(t, result.Outcomes[1].Err, ErrMissingOutcome)
}

func TestSubmit_RejectsUnaddressableRecords(t *testing.T) {
	engine := &fakeEngine{}
	ix, err := NewIndexer(engine)
	require.NoError(t, err)

	result, err := ix.Submit(context.Background(), batchOf(1, nil, 2, 1), "reviews", ModeCreate)
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 4)

	assert.NoError(t, result.Outcomes[0].Err)
	assert.ErrorIs(t, result.Outcomes[1].Err, core.ErrMissingIdentifier)
	assert.Zero(t, result.Outcomes[1].ID)
	assert.NoError(t, result.Outcomes[2].Err)
	assert.ErrorIs(t, result.Outcomes[3].Err, core.ErrDuplicateIdentifier)
	assert.Equal(t, core.ID(1), result.Outcomes[3].ID)

	require.Len(t, engine.ops, 2)
	assert.Equal(t, core.ID(1), engine.ops[0].ID)
	assert.Equal(t, core.ID(2), engine.ops[1].ID)
}

func TestSubmit_TransportFailure(t *testing.T) {
	boom := errors.New("connection reset")
	engine := &fakeEngine{respond: func([]Operation) ([]ItemResult, error) { return nil, boom }}
	ix, err := NewIndexer(engine)
	require.NoError(t, err)

	result, err := ix.Submit(context.Background(), batchOf(1, nil, 3), "reviews", ModeCreate)
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, result)
	require.Len(t, result.Outcomes, 3)
	assert.ErrorIs(t, result.Outcomes[0].Err, boom)
	assert.ErrorIs(t, result.Outcomes[1].Err, core.ErrMissingIdentifier)
	assert.ErrorIs(t, result.Outcomes[2].Err, boom)
}

func TestSubmit_EmptyBatch(t *testing.T) {
	engine := &fakeEngine{}
	ix, err := NewIndexer(engine)
	require.NoError(t, err)

	result, err := ix.Submit(context.Background(), core.Batch{}, "reviews", ModeCreate)
	require.NoError(t, err)
	assert.Empty(t, result.Outcomes)
	assert.True(t, result.OK())
	assert.Zero(t, engine.calls)
}

func TestSubmit_RequiresIndex(t *testing.T) {
	ix, err := NewIndexer(&fakeEngine{})
	require.NoError(t, err)

	_, err = ix.Submit(context.Background(), batchOf(1), "", ModeCreate)
	assert.ErrorIs(t, err, ErrIndexRequired)
}

func TestPlan_OperationsRestartable(t *testing.T) {
	plan := NewPlan(batchOf(1, 2, nil), "reviews", ModeCreate)
	assert.Equal(t, 2, plan.Accepted())

	first := slices.Collect(plan.Operations())
	second := slices.Collect(plan.Operations())
	assert.Equal(t, first, second)
	assert.Len(t, first, 2)

	for op := range plan.Operations() {
		assert.Equal(t, core.ID(1), op.ID)
		break
	}
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "create", ModeCreate.String())
	assert.Equal(t, "update", ModeUpdate.String())
	assert.Equal(t, "mode(7)", Mode(7).String())
}
