package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/loop-dev/loop-battle/internal/battle"
)

func choice(v int) battle.Answer { return battle.Answer{Choice: &v} }

func quiz(n int) []battle.Problem {
	problems := make([]battle.Problem, n)
	for i := range problems {
		problems[i] = battle.Problem{
			ID:   int64(i + 1),
			Body: battle.MultipleChoice{Options: []string{"a", "b", "c", "d"}, CorrectIndex: 0},
		}
	}
	return problems
}

func TestScore_UnansweredCountAsIncorrect(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	answers := map[int64]battle.Answer{
		1: choice(0),
		2: choice(0),
		3: choice(1),
	}

	res := engine.Score(quiz(5), answers)
	assert.Equal(t, Result{CorrectCount: 2, Attempted: 3, Total: 5, AccuracyPercent: 40}, res)
}

func TestScore_EmptyProblemSet(t *testing.T) {
	res := NewEngine(DefaultConfig()).Score(nil, nil)
	assert.Equal(t, 0, res.AccuracyPercent)
	assert.Equal(t, 0, res.Total)
}

func TestScore_SubjectiveHandling(t *testing.T) {
	problems := append(quiz(1), battle.Problem{ID: 9, Body: battle.Subjective{}})
	answers := map[int64]battle.Answer{1: choice(0), 9: {Text: "essay"}}

	with := NewEngine(DefaultConfig()).Score(problems, answers)
	assert.Equal(t, 2, with.Total)
	assert.Equal(t, 2, with.Attempted)
	assert.Equal(t, 50, with.AccuracyPercent)

	without := NewEngine(Config{IncludeSubjective: false}).Score(problems, answers)
	assert.Equal(t, 1, without.Total)
	assert.Equal(t, 100, without.AccuracyPercent)
}

func TestAccuracyPercent(t *testing.T) {
	cases := []struct {
		correct, total, want int
	}{
		{0, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{3, 3, 100},
		{5, 5, 100},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, AccuracyPercent(tc.correct, tc.total), "%d/%d", tc.correct, tc.total)
	}
}

func TestAccuracyPercentStaysInRange(t *testing.T) {
	for total := 0; total <= 20; total++ {
		for correct := 0; correct <= total; correct++ {
			got := AccuracyPercent(correct, total)
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, 100)
		}
	}
}

func TestRemainingTimePercent(t *testing.T) {
	d := 600 * time.Second

	assert.Equal(t, 100, RemainingTimePercent(0, d))
	assert.Equal(t, 50, RemainingTimePercent(300*time.Second, d))
	assert.Equal(t, 0, RemainingTimePercent(d, d))
	assert.Equal(t, 0, RemainingTimePercent(2*d, d), "overrun clamps to 0")
	assert.Equal(t, 100, RemainingTimePercent(-time.Second, d), "clock skew clamps to 100")
	assert.Equal(t, 0, RemainingTimePercent(0, 0))
}

func TestPassRatioPercent(t *testing.T) {
	assert.Equal(t, 75, PassRatioPercent(0.75))
	assert.Equal(t, 100, PassRatioPercent(1.5))
	assert.Equal(t, 0, PassRatioPercent(-1))
}

func TestCompare(t *testing.T) {
	a, b := Compare(Standing{80, 50}, Standing{80, 70})
	assert.Equal(t, battle.OutcomeLose, a)
	assert.Equal(t, battle.OutcomeWin, b)

	a, b = Compare(Standing{60, 40}, Standing{60, 40})
	assert.Equal(t, battle.OutcomeDraw, a)
	assert.Equal(t, battle.OutcomeDraw, b)

	a, b = Compare(Standing{90, 0}, Standing{10, 100})
	assert.Equal(t, battle.OutcomeWin, a)
	assert.Equal(t, battle.OutcomeLose, b)
}

func TestTotalScore(t *testing.T) {
	assert.Equal(t, 150, TotalScore(100, 50))
}
