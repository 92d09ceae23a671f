package match

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loop-dev/loop-battle/internal/battle"
)

func newTestReconciler() (*Reconciler, uuid.UUID, uuid.UUID) {
	a, b := uuid.New(), uuid.New()
	return NewReconciler(uuid.New(), a, b), a, b
}

func assertConsistent(t *testing.T, snap Snapshot) {
	t.Helper()
	oa := snap.Outcomes[snap.Players[0]]
	ob := snap.Outcomes[snap.Players[1]]
	valid := (oa == battle.OutcomeDraw && ob == battle.OutcomeDraw) ||
		(oa == battle.OutcomeWin && ob == battle.OutcomeLose) ||
		(oa == battle.OutcomeLose && ob == battle.OutcomeWin)
	assert.True(t, valid, "inconsistent outcomes %s/%s", oa, ob)
}

func TestReconciler_FasterPlayerWinsTie(t *testing.T) {
	r, a, b := newTestReconciler()

	first, err := r.Submit(t0, a, Result{AccuracyPercent: 80, RemainingTimePercent: 50})
	require.NoError(t, err)
	assert.False(t, first.IsComplete)
	assert.Nil(t, first.MyOutcome)
	assert.Equal(t, PhaseAwaitingOpponent, r.Phase())

	second, err := r.Submit(t0, b, Result{AccuracyPercent: 80, RemainingTimePercent: 70})
	require.NoError(t, err)
	require.True(t, second.IsComplete)
	assert.Equal(t, battle.OutcomeWin, *second.MyOutcome)
	assert.Equal(t, battle.OutcomeLose, *second.OpponentOutcome)
	assert.Equal(t, ResolutionCompared, second.Resolution)
	assertConsistent(t, r.Snapshot())
}

func TestReconciler_EqualResultsDraw(t *testing.T) {
	r, a, b := newTestReconciler()

	_, err := r.Submit(t0, a, Result{AccuracyPercent: 60, RemainingTimePercent: 40})
	require.NoError(t, err)
	resp, err := r.Submit(t0, b, Result{AccuracyPercent: 60, RemainingTimePercent: 40})
	require.NoError(t, err)

	assert.Equal(t, battle.OutcomeDraw, *resp.MyOutcome)
	assert.Equal(t, battle.OutcomeDraw, *resp.OpponentOutcome)
}

func TestReconciler_ResubmitOverwritesPending(t *testing.T) {
	r, a, b := newTestReconciler()

	_, err := r.Submit(t0, a, Result{AccuracyPercent: 10, RemainingTimePercent: 10})
	require.NoError(t, err)
	_, err = r.Submit(t0, a, Result{AccuracyPercent: 90, RemainingTimePercent: 10})
	require.NoError(t, err)
	assert.Len(t, r.Snapshot().Results, 1)
	assert.Equal(t, PhaseAwaitingOpponent, r.Phase())

	resp, err := r.Submit(t0, b, Result{AccuracyPercent: 50, RemainingTimePercent: 90})
	require.NoError(t, err)
	assert.Equal(t, battle.OutcomeLose, *resp.MyOutcome)
}

func TestReconciler_AfterCompleteSubmitFailsButGetReturnsOutcome(t *testing.T) {
	r, a, b := newTestReconciler()

	_, err := r.Submit(t0, a, Result{AccuracyPercent: 100})
	require.NoError(t, err)
	_, err = r.Submit(t0, b, Result{AccuracyPercent: 0})
	require.NoError(t, err)

	_, err = r.Submit(t0, a, Result{AccuracyPercent: 0})
	assert.ErrorIs(t, err, battle.ErrAlreadyComplete)

	got, err := r.Get(a)
	require.NoError(t, err)
	assert.True(t, got.IsComplete)
	assert.Equal(t, battle.OutcomeWin, *got.MyOutcome)
}

func TestReconciler_ForfeitFavorsResponder(t *testing.T) {
	r, a, b := newTestReconciler()

	assert.ErrorIs(t, r.Forfeit(t0, b), battle.ErrInvalidState)

	_, err := r.Submit(t0, a, Result{AccuracyPercent: 50, RemainingTimePercent: 20})
	require.NoError(t, err)
	assert.ErrorIs(t, r.Forfeit(t0, a), battle.ErrInvalidState)
	require.NoError(t, r.Forfeit(t0, b))

	got, err := r.Get(a)
	require.NoError(t, err)
	assert.Equal(t, battle.OutcomeWin, *got.MyOutcome)
	assert.Equal(t, battle.OutcomeLose, *got.OpponentOutcome)
	assert.Equal(t, ResolutionForfeit, got.Resolution)
	assertConsistent(t, r.Snapshot())
}

func TestReconciler_ResolveTimeoutPolicies(t *testing.T) {
	t.Run("draw", func(t *testing.T) {
		r, a, _ := newTestReconciler()
		require.NoError(t, r.ResolveTimeout(t0, TimeoutDraw, nil))
		got, err := r.Get(a)
		require.NoError(t, err)
		assert.Equal(t, battle.OutcomeDraw, *got.MyOutcome)
		assert.Equal(t, ResolutionTimeoutDraw, got.Resolution)
	})

	t.Run("double loss", func(t *testing.T) {
		r, a, _ := newTestReconciler()
		require.NoError(t, r.ResolveTimeout(t0, TimeoutDoubleLoss, nil))
		got, err := r.Get(a)
		require.NoError(t, err)
		assert.Equal(t, battle.OutcomeLose, *got.MyOutcome)
		assert.Equal(t, battle.OutcomeLose, *got.OpponentOutcome)
	})

	t.Run("compare", func(t *testing.T) {
		r, a, b := newTestReconciler()
		require.Error(t, r.ResolveTimeout(t0, TimeoutCompare, map[uuid.UUID]Result{a: {}}))
		assert.Equal(t, PhaseAwaitingBoth, r.Phase())

		require.NoError(t, r.ResolveTimeout(t0, TimeoutCompare, map[uuid.UUID]Result{
			a: {AccuracyPercent: 40},
			b: {AccuracyPercent: 20},
		}))
		got, err := r.Get(b)
		require.NoError(t, err)
		assert.Equal(t, battle.OutcomeLose, *got.MyOutcome)
		assertConsistent(t, r.Snapshot())
	})
}

func TestReconciler_RejectsOutsiderAndBadRanges(t *testing.T) {
	r, a, _ := newTestReconciler()

	_, err := r.Submit(t0, uuid.New(), Result{})
	assert.ErrorIs(t, err, battle.ErrAccessDenied)

	_, err = r.Submit(t0, a, Result{AccuracyPercent: -1})
	assert.ErrorIs(t, err, battle.ErrValidation)
	_, err = r.Submit(t0, a, Result{RemainingTimePercent: 101})
	assert.ErrorIs(t, err, battle.ErrValidation)
	assert.Equal(t, PhaseAwaitingBoth, r.Phase())

	_, err = r.Get(uuid.New())
	assert.ErrorIs(t, err, battle.ErrAccessDenied)
}

func TestReconciler_RestoreCompletesWhenBothOnFile(t *testing.T) {
	r, a, b := newTestReconciler()

	r.restoreResult(t0, a, Result{AccuracyPercent: 10})
	assert.Equal(t, PhaseAwaitingOpponent, r.Phase())
	r.restoreResult(t0, b, Result{AccuracyPercent: 20})
	assert.Equal(t, PhaseComplete, r.Phase())

	got, err := r.Get(b)
	require.NoError(t, err)
	assert.Equal(t, battle.OutcomeWin, *got.MyOutcome)
}
