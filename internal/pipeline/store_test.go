package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvasquez/survey-generator/internal/types"
)

func storedRun() *WorkflowRun {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &WorkflowRun{
		ID:         uuid.New(),
		Step:       StepParsingRFQ,
		Status:     StatusRunning,
		RFQText:    "We need a survey about commuting habits.",
		RFQSource:  "rfq.txt",
		Seq:        1,
		MaxPercent: Percentage(StepParsingRFQ),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestMemoryStore_CreateAndLoad(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	run := storedRun()

	require.NoError(t, store.CreateRun(ctx, run))

	loaded, err := store.LoadRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, loaded.ID)
	assert.Equal(t, StepParsingRFQ, loaded.Step)
	assert.Equal(t, StatusRunning, loaded.Status)
	assert.Equal(t, run.RFQText, loaded.RFQText)
	assert.Equal(t, run.RFQSource, loaded.RFQSource)
	assert.Equal(t, run.MaxPercent, loaded.MaxPercent)
}

func TestMemoryStore_CreateDuplicateFails(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	run := storedRun()

	require.NoError(t, store.CreateRun(ctx, run))
	err := store.CreateRun(ctx, run)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestMemoryStore_LoadMissingRun(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.LoadRun(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestMemoryStore_SaveRequiresExistingRun(t *testing.T) {
	store := NewMemoryStore()
	err := store.SaveRun(context.Background(), storedRun())
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestMemoryStore_SaveOverwrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	run := storedRun()
	require.NoError(t, store.CreateRun(ctx, run))

	run.Step = StepGeneratingEmbeddings
	run.Seq = 2
	run.MaxPercent = Percentage(StepGeneratingEmbeddings)
	run.Artifacts.Profile = &types.RFQProfile{Topic: "commuting habits"}
	require.NoError(t, store.SaveRun(ctx, run))

	loaded, err := store.LoadRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, StepGeneratingEmbeddings, loaded.Step)
	assert.Equal(t, 2, loaded.Seq)
	require.NotNil(t, loaded.Artifacts.Profile)
	assert.Equal(t, "commuting habits", loaded.Artifacts.Profile.Topic)
}

// Loaded runs are private copies: mutating one must not leak back into the
// store or into other loads.
func TestMemoryStore_LoadedRunsAreIsolated(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	run := storedRun()
	require.NoError(t, store.CreateRun(ctx, run))

	first, err := store.LoadRun(ctx, run.ID)
	require.NoError(t, err)
	first.Status = StatusFailed
	first.Artifacts.PlanFeedback = append(first.Artifacts.PlanFeedback, "mutation")

	second, err := store.LoadRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, second.Status)
	assert.Empty(t, second.Artifacts.PlanFeedback)
}

func TestMemoryStore_TransitionsSortedBySeq(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	runID := uuid.New()

	for _, seq := range []int{2, 1, 3} {
		require.NoError(t, store.AppendTransition(ctx, Transition{
			RunID: runID,
			Seq:   seq,
			From:  StepParsingRFQ,
			To:    StepGeneratingEmbeddings,
			At:    time.Now().UTC(),
		}))
	}

	listed, err := store.ListTransitions(ctx, runID)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	for i, tr := range listed {
		assert.Equal(t, i+1, tr.Seq)
	}
}

func TestMemoryStore_TransitionsForUnknownRunIsEmpty(t *testing.T) {
	store := NewMemoryStore()
	listed, err := store.ListTransitions(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestMemoryStore_ListedTransitionsAreCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	runID := uuid.New()
	require.NoError(t, store.AppendTransition(ctx, Transition{RunID: runID, Seq: 1, Note: "original"}))

	listed, err := store.ListTransitions(ctx, runID)
	require.NoError(t, err)
	listed[0].Note = "mutated"

	again, err := store.ListTransitions(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, "original", again[0].Note)
}

func TestMemoryStore_TransitionsAreSeparatedByRun(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	require.NoError(t, store.AppendTransition(ctx, Transition{RunID: a, Seq: 1}))
	require.NoError(t, store.AppendTransition(ctx, Transition{RunID: b, Seq: 1}))
	require.NoError(t, store.AppendTransition(ctx, Transition{RunID: a, Seq: 2}))

	forA, err := store.ListTransitions(ctx, a)
	require.NoError(t, err)
	forB, err := store.ListTransitions(ctx, b)
	require.NoError(t, err)
	assert.Len(t, forA, 2)
	assert.Len(t, forB, 1)
}
