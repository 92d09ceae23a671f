package match

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loop-dev/loop-battle/internal/battle"
	"github.com/loop-dev/loop-battle/internal/match/scoring"
)

// Trigger records what finalized a submission.
type Trigger string

const (
	TriggerUser     Trigger = "user"
	TriggerTimeout  Trigger = "timeout"
	TriggerReported Trigger = "reported"
)

// Submission is a player's finalized record. Immutable once Finalized is set.
type Submission struct {
	Finalized            bool          `json:"finalized"`
	Trigger              Trigger       `json:"trigger"`
	Elapsed              time.Duration `json:"elapsed"`
	CorrectCount         int           `json:"correctCount"`
	Attempted            int           `json:"attempted"`
	Total                int           `json:"total"`
	AccuracyPercent      int           `json:"accuracyPercent"`
	RemainingTimePercent int           `json:"remainingTimePercent"`
	FinalizedAt          time.Time     `json:"finalizedAt"`
}

// Result returns the comparable part of the submission.
func (s Submission) Result() Result {
	return Result{AccuracyPercent: s.AccuracyPercent, RemainingTimePercent: s.RemainingTimePercent}
}

// FinalizeRequest carries the inputs for one finalization.
type FinalizeRequest struct {
	Trigger Trigger
	// PassRatio is the external code-execution result for CodeTest rooms.
	PassRatio *float64
	// Reported carries client-computed percentages when Trigger is TriggerReported.
	Reported *Result
}

type playerState struct {
	cursor     int
	answers    map[int64]battle.Answer
	submission *Submission
}

// Session tracks per-player answers and timers for one started room.
// It is not safe for concurrent use; the owning Match serializes access.
type Session struct {
	mode      battle.Mode
	problems  []battle.Problem
	index     map[int64]int
	startedAt time.Time
	duration  time.Duration
	players   map[uuid.UUID]*playerState
	engine    *scoring.Engine
}

// NewSession binds a session to its players and problem set.
func NewSession(mode battle.Mode, problems []battle.Problem, players []uuid.UUID, startedAt time.Time, duration time.Duration, engine *scoring.Engine) *Session {
	s := &Session{
		mode:      mode,
		problems:  problems,
		index:     make(map[int64]int, len(problems)),
		startedAt: startedAt,
		duration:  duration,
		players:   make(map[uuid.UUID]*playerState, len(players)),
		engine:    engine,
	}
	for i, p := range problems {
		s.index[p.ID] = i
	}
	for _, id := range players {
		s.players[id] = &playerState{answers: make(map[int64]battle.Answer)}
	}
	return s
}

func (s *Session) Mode() battle.Mode { return s.mode }
func (s *Session) StartedAt() time.Time { return s.startedAt }
func (s *Session) Duration() time.Duration { return s.duration }
func (s *Session) Deadline() time.Time { return s.startedAt.Add(s.duration) }
func (s *Session) Problems() []battle.Problem { return s.problems }
func (s *Session) Expired(now time.Time) bool { return !now.Before(s.Deadline()) }

func (s *Session) player(id uuid.UUID) (*playerState, error) {
	ps, ok := s.players[id]
	if !ok {
		return nil, battle.NotFound(fmt.Sprintf("player %s is not in this match", id))
	}
	return ps, nil
}

// RecordAnswer stores or overwrites the player's answer for a problem.
func (s *Session) RecordAnswer(now time.Time, playerID uuid.UUID, problemID int64, answer battle.Answer) error {
	ps, err := s.player(playerID)
	if err != nil {
		return err
	}
	if ps.submission != nil {
		return battle.ErrAlreadyFinalized
	}
	if s.Expired(now) {
		return battle.InvalidState("match deadline has passed")
	}
	idx, ok := s.index[problemID]
	if !ok {
		return battle.NotFound(fmt.Sprintf("problem %d is not part of this match", problemID))
	}
	if err := s.problems[idx].Validate(answer); err != nil {
		return err
	}
	ps.answers[problemID] = answer
	if idx+1 > ps.cursor {
		ps.cursor = idx + 1
	}
	return nil
}

// remaining is clamped to [0, duration] so clock skew can never push elapsed out of range.
func (s *Session) remaining(now time.Time, ps *playerState) time.Duration {
	if ps.submission != nil {
		return s.duration - ps.submission.Elapsed
	}
	left := s.Deadline().Sub(now)
	if left < 0 {
		return 0
	}
	if left > s.duration {
		return s.duration
	}
	return left
}

// RemainingSeconds is non-increasing while the player is active and frozen once they finalize.
func (s *Session) RemainingSeconds(now time.Time, playerID uuid.UUID) (int, error) {
	ps, err := s.player(playerID)
	if err != nil {
		return 0, err
	}
	return int(s.remaining(now, ps) / time.Second), nil
}

// Finalize seals the player's submission.
func (s *Session) Finalize(now time.Time, playerID uuid.UUID, req FinalizeRequest) (Submission, error) {
	ps, err := s.player(playerID)
	if err != nil {
		return Submission{}, err
	}
	if ps.submission != nil {
		return Submission{}, battle.ErrAlreadyFinalized
	}

	elapsed := s.duration - s.remaining(now, ps)
	sub := Submission{
		Finalized:            true,
		Trigger:              req.Trigger,
		Elapsed:              elapsed,
		Total:                len(s.problems),
		RemainingTimePercent: scoring.RemainingTimePercent(elapsed, s.duration),
		FinalizedAt:          now,
	}

	switch {
	case req.Trigger == TriggerReported:
		if req.Reported == nil {
			return Submission{}, battle.Validation("result", "reported result is required")
		}
		if err := req.Reported.Validate(); err != nil {
			return Submission{}, err
		}
		sub.AccuracyPercent = req.Reported.AccuracyPercent
		sub.RemainingTimePercent = req.Reported.RemainingTimePercent
		sub.Attempted = len(ps.answers)
	case s.mode == battle.ModeCodeTest:
		if req.PassRatio != nil && req.Trigger == TriggerUser {
			if *req.PassRatio < 0 || *req.PassRatio > 1 {
				return Submission{}, battle.Validation("passRatio", "pass ratio must be within [0,1]")
			}
			sub.Attempted = len(s.problems)
			sub.AccuracyPercent = scoring.PassRatioPercent(*req.PassRatio)
			if sub.AccuracyPercent == 100 {
				sub.CorrectCount = len(s.problems)
			}
		}
	default:
		graded := s.engine.Score(s.problems, ps.answers)
		sub.CorrectCount = graded.CorrectCount
		sub.Attempted = graded.Attempted
		sub.Total = graded.Total
		sub.AccuracyPercent = graded.AccuracyPercent
	}

	ps.submission = &sub
	return sub, nil
}

// Submission returns the player's finalized record, if any.
func (s *Session) Submission(playerID uuid.UUID) (Submission, bool) {
	ps, ok := s.players[playerID]
	if !ok || ps.submission == nil {
		return Submission{}, false
	}
	return *ps.submission, true
}

// Progress is a player's view of their own session.
type Progress struct {
	Cursor           int         `json:"cursor"`
	Answered         int         `json:"answered"`
	Total            int         `json:"total"`
	RemainingSeconds int         `json:"remainingSeconds"`
	Submission       *Submission `json:"submission,omitempty"`
}

// Progress reports cursor, answer count and clock for a player.
func (s *Session) Progress(now time.Time, playerID uuid.UUID) (Progress, error) {
	ps, err := s.player(playerID)
	if err != nil {
		return Progress{}, err
	}
	p := Progress{
		Cursor:           ps.cursor,
		Answered:         len(ps.answers),
		Total:            len(s.problems),
		RemainingSeconds: int(s.remaining(now, ps) / time.Second),
	}
	if ps.submission != nil {
		sub := *ps.submission
		p.Submission = &sub
	}
	return p, nil
}

// Answers returns a copy of the player's recorded answers.
func (s *Session) Answers(playerID uuid.UUID) map[int64]battle.Answer {
	ps, ok := s.players[playerID]
	if !ok {
		return nil
	}
	out := make(map[int64]battle.Answer, len(ps.answers))
	for k, v := range ps.answers {
		out[k] = v
	}
	return out
}

// restore loads persisted player state during recovery.
func (s *Session) restore(playerID uuid.UUID, answers map[int64]battle.Answer, sub *Submission) {
	ps, ok := s.players[playerID]
	if !ok {
		return
	}
	for problemID, a := range answers {
		idx, ok := s.index[problemID]
		if !ok {
			continue
		}
		ps.answers[problemID] = a
		if idx+1 > ps.cursor {
			ps.cursor = idx + 1
		}
	}
	if sub != nil {
		cp := *sub
		ps.submission = &cp
	}
}
