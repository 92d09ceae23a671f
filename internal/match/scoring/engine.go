package scoring

import (
	"math"
	"time"

	"github.com/loop-dev/loop-battle/internal/battle"
)

// Config holds tunable scoring rules.
type Config struct {
	// IncludeSubjective counts subjective problems toward the total. They are never auto-correct.
	IncludeSubjective bool
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{IncludeSubjective: true}
}

// Engine computes correctness and comparable percentages. It holds no mutable state.
type Engine struct {
	config Config
}

// NewEngine creates a scoring engine with the provided config.
func NewEngine(config Config) *Engine {
	return &Engine{config: config}
}

// Result is the graded outcome of one player's answers.
type Result struct {
	CorrectCount    int
	Attempted       int
	Total           int
	AccuracyPercent int
}

// Score grades answers against the problem set. Problems without an answer count as incorrect.
func (e *Engine) Score(problems []battle.Problem, answers map[int64]battle.Answer) Result {
	var res Result
	for _, p := range problems {
		if _, subjective := p.Body.(battle.Subjective); subjective && !e.config.IncludeSubjective {
			continue
		}
		res.Total++
		ans, ok := answers[p.ID]
		if !ok {
			continue
		}
		res.Attempted++
		if p.Correct(ans) {
			res.CorrectCount++
		}
	}
	res.AccuracyPercent = AccuracyPercent(res.CorrectCount, res.Total)
	return res
}

// AccuracyPercent is round(100*correct/total), 0 when there are no problems.
func AccuracyPercent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return clampPercent(math.Round(100 * float64(correct) / float64(total)))
}

// RemainingTimePercent is round(100*(duration-elapsed)/duration) clamped to [0,100].
func RemainingTimePercent(elapsed, duration time.Duration) int {
	if duration <= 0 {
		return 0
	}
	return clampPercent(math.Round(100 * float64(duration-elapsed) / float64(duration)))
}

// PassRatioPercent converts an external test pass ratio in [0,1] to a percentage.
func PassRatioPercent(ratio float64) int {
	if math.IsNaN(ratio) {
		return 0
	}
	return clampPercent(math.Round(100 * ratio))
}

// TotalScore is the display score shown next to a result.
func TotalScore(accuracyPercent, remainingTimePercent int) int {
	return accuracyPercent + remainingTimePercent
}

// Standing is the comparable part of a finalized result.
type Standing struct {
	AccuracyPercent      int
	RemainingTimePercent int
}

// Compare ranks two standings: more correct wins, then more time left, else draw.
func Compare(a, b Standing) (battle.Outcome, battle.Outcome) {
	switch {
	case a.AccuracyPercent > b.AccuracyPercent:
		return battle.OutcomeWin, battle.OutcomeLose
	case a.AccuracyPercent < b.AccuracyPercent:
		return battle.OutcomeLose, battle.OutcomeWin
	case a.RemainingTimePercent > b.RemainingTimePercent:
		return battle.OutcomeWin, battle.OutcomeLose
	case a.RemainingTimePercent < b.RemainingTimePercent:
		return battle.OutcomeLose, battle.OutcomeWin
	}
	return battle.OutcomeDraw, battle.OutcomeDraw
}

func clampPercent(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(v)
}
