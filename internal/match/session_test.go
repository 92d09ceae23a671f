package match

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loop-dev/loop-battle/internal/battle"
	"github.com/loop-dev/loop-battle/internal/match/scoring"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func choice(v int) battle.Answer { return battle.Answer{Choice: &v} }

func quizProblems(n int) []battle.Problem {
	problems := make([]battle.Problem, n)
	for i := range problems {
		problems[i] = battle.Problem{
			ID:    int64(i + 1),
			Title: "q",
			Body:  battle.MultipleChoice{Options: []string{"a", "b", "c"}, CorrectIndex: 1},
		}
	}
	return problems
}

func newQuizSession(t *testing.T, n int) (*Session, uuid.UUID, uuid.UUID) {
	t.Helper()
	a, b := uuid.New(), uuid.New()
	s := NewSession(battle.ModeMiniQuiz, quizProblems(n), []uuid.UUID{a, b}, t0, 600*time.Second, scoring.NewEngine(scoring.DefaultConfig()))
	return s, a, b
}

func TestSession_TimeoutKeepsRecordedAnswers(t *testing.T) {
	s, a, _ := newQuizSession(t, 5)

	require.NoError(t, s.RecordAnswer(t0.Add(10*time.Second), a, 1, choice(1)))
	require.NoError(t, s.RecordAnswer(t0.Add(20*time.Second), a, 2, choice(1)))
	require.NoError(t, s.RecordAnswer(t0.Add(30*time.Second), a, 3, choice(0)))

	sub, err := s.Finalize(t0.Add(600*time.Second), a, FinalizeRequest{Trigger: TriggerTimeout})
	require.NoError(t, err)

	assert.Equal(t, 3, sub.Attempted)
	assert.Equal(t, 2, sub.CorrectCount)
	assert.Equal(t, 5, sub.Total)
	assert.Equal(t, 40, sub.AccuracyPercent)
	assert.Equal(t, 600*time.Second, sub.Elapsed)
	assert.Equal(t, 0, sub.RemainingTimePercent)
	assert.Equal(t, TriggerTimeout, sub.Trigger)
}

func TestSession_RecordAnswerOverwrites(t *testing.T) {
	s, a, _ := newQuizSession(t, 2)

	require.NoError(t, s.RecordAnswer(t0, a, 1, choice(0)))
	require.NoError(t, s.RecordAnswer(t0.Add(time.Second), a, 1, choice(1)))

	sub, err := s.Finalize(t0.Add(150*time.Second), a, FinalizeRequest{Trigger: TriggerUser})
	require.NoError(t, err)
	assert.Equal(t, 1, sub.Attempted)
	assert.Equal(t, 1, sub.CorrectCount)
	assert.Equal(t, 50, sub.AccuracyPercent)
	assert.Equal(t, 75, sub.RemainingTimePercent)
}

func TestSession_RecordAnswerRejections(t *testing.T) {
	s, a, _ := newQuizSession(t, 2)

	assert.ErrorIs(t, s.RecordAnswer(t0, uuid.New(), 1, choice(0)), battle.ErrNotFound)
	assert.ErrorIs(t, s.RecordAnswer(t0, a, 42, choice(0)), battle.ErrNotFound)
	assert.ErrorIs(t, s.RecordAnswer(t0, a, 1, battle.Answer{}), battle.ErrValidation)
	assert.ErrorIs(t, s.RecordAnswer(t0.Add(601*time.Second), a, 1, choice(0)), battle.ErrInvalidState)

	_, err := s.Finalize(t0, a, FinalizeRequest{Trigger: TriggerUser})
	require.NoError(t, err)
	assert.ErrorIs(t, s.RecordAnswer(t0, a, 1, choice(0)), battle.ErrAlreadyFinalized)
}

func TestSession_FinalizeTwiceFails(t *testing.T) {
	s, a, _ := newQuizSession(t, 1)

	_, err := s.Finalize(t0.Add(time.Minute), a, FinalizeRequest{Trigger: TriggerUser})
	require.NoError(t, err)

	_, err = s.Finalize(t0.Add(2*time.Minute), a, FinalizeRequest{Trigger: TriggerTimeout})
	assert.ErrorIs(t, err, battle.ErrAlreadyFinalized)
}

func TestSession_ElapsedClampedUnderClockSkew(t *testing.T) {
	s, a, b := newQuizSession(t, 1)

	early, err := s.Finalize(t0.Add(-time.Minute), a, FinalizeRequest{Trigger: TriggerUser})
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), early.Elapsed)
	assert.Equal(t, 100, early.RemainingTimePercent)

	late, err := s.Finalize(t0.Add(time.Hour), b, FinalizeRequest{Trigger: TriggerUser})
	require.NoError(t, err)
	assert.Equal(t, 600*time.Second, late.Elapsed)
}

func TestSession_RemainingSecondsFrozenAfterFinalize(t *testing.T) {
	s, a, b := newQuizSession(t, 1)

	prev := 601
	for i := 0; i <= 700; i += 50 {
		got, err := s.RemainingSeconds(t0.Add(time.Duration(i)*time.Second), b)
		require.NoError(t, err)
		assert.LessOrEqual(t, got, prev)
		assert.GreaterOrEqual(t, got, 0)
		prev = got
	}

	_, err := s.Finalize(t0.Add(100*time.Second), a, FinalizeRequest{Trigger: TriggerUser})
	require.NoError(t, err)
	got, err := s.RemainingSeconds(t0.Add(500*time.Second), a)
	require.NoError(t, err)
	assert.Equal(t, 500, got)
}

func TestSession_OpponentClockIndependent(t *testing.T) {
	s, a, b := newQuizSession(t, 1)

	_, err := s.Finalize(t0.Add(10*time.Second), a, FinalizeRequest{Trigger: TriggerUser})
	require.NoError(t, err)

	require.NoError(t, s.RecordAnswer(t0.Add(300*time.Second), b, 1, choice(1)))
	got, err := s.RemainingSeconds(t0.Add(300*time.Second), b)
	require.NoError(t, err)
	assert.Equal(t, 300, got)
}

func TestSession_CodeTestUsesPassRatio(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	problem := battle.Problem{ID: 1, Body: battle.Subjective{}}
	s := NewSession(battle.ModeCodeTest, []battle.Problem{problem}, []uuid.UUID{a, b}, t0, 2400*time.Second, scoring.NewEngine(scoring.DefaultConfig()))

	ratio := 0.8
	sub, err := s.Finalize(t0.Add(1200*time.Second), a, FinalizeRequest{Trigger: TriggerUser, PassRatio: &ratio})
	require.NoError(t, err)
	assert.Equal(t, 80, sub.AccuracyPercent)
	assert.Equal(t, 50, sub.RemainingTimePercent)

	bad := 1.5
	_, err = s.Finalize(t0, b, FinalizeRequest{Trigger: TriggerUser, PassRatio: &bad})
	assert.ErrorIs(t, err, battle.ErrValidation)

	timedOut, err := s.Finalize(t0.Add(2400*time.Second), b, FinalizeRequest{Trigger: TriggerTimeout})
	require.NoError(t, err)
	assert.Equal(t, 0, timedOut.AccuracyPercent)
}

func TestSession_ReportedResult(t *testing.T) {
	s, a, b := newQuizSession(t, 3)

	sub, err := s.Finalize(t0.Add(time.Minute), a, FinalizeRequest{
		Trigger:  TriggerReported,
		Reported: &Result{AccuracyPercent: 67, RemainingTimePercent: 88},
	})
	require.NoError(t, err)
	assert.Equal(t, 67, sub.AccuracyPercent)
	assert.Equal(t, 88, sub.RemainingTimePercent)

	_, err = s.Finalize(t0, b, FinalizeRequest{Trigger: TriggerReported, Reported: &Result{AccuracyPercent: 101}})
	assert.ErrorIs(t, err, battle.ErrValidation)
}

func TestSession_ProgressTracksCursor(t *testing.T) {
	s, a, _ := newQuizSession(t, 4)

	require.NoError(t, s.RecordAnswer(t0, a, 3, choice(0)))
	require.NoError(t, s.RecordAnswer(t0, a, 1, choice(0)))

	p, err := s.Progress(t0.Add(90*time.Second), a)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Cursor)
	assert.Equal(t, 2, p.Answered)
	assert.Equal(t, 4, p.Total)
	assert.Equal(t, 510, p.RemainingSeconds)
	assert.Nil(t, p.Submission)
}
