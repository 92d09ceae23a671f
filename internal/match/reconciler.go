package match

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loop-dev/loop-battle/internal/battle"
	"github.com/loop-dev/loop-battle/internal/match/scoring"
)

// Phase is the reconciliation state of a match.
type Phase string

const (
	PhaseAwaitingBoth     Phase = "awaiting_both"
	PhaseAwaitingOpponent Phase = "awaiting_opponent"
	PhaseComplete         Phase = "complete"
)

// Resolution records how a complete match was decided.
type Resolution string

const (
	ResolutionCompared          Resolution = "compared"
	ResolutionForfeit           Resolution = "forfeit"
	ResolutionTimeoutCompared   Resolution = "timeout_compared"
	ResolutionTimeoutDraw       Resolution = "timeout_draw"
	ResolutionTimeoutDoubleLoss Resolution = "timeout_double_loss"
)

// TimeoutPolicy decides a match where neither player responded by the deadline.
type TimeoutPolicy string

const (
	TimeoutCompare    TimeoutPolicy = "compare"
	TimeoutDraw       TimeoutPolicy = "draw"
	TimeoutDoubleLoss TimeoutPolicy = "double_loss"
)

// ParseTimeoutPolicy validates a configured policy.
func ParseTimeoutPolicy(s string) (TimeoutPolicy, error) {
	switch TimeoutPolicy(s) {
	case TimeoutCompare, TimeoutDraw, TimeoutDoubleLoss:
		return TimeoutPolicy(s), nil
	}
	return "", fmt.Errorf("unknown timeout policy %q", s)
}

// Result is one player's comparable standing.
type Result struct {
	AccuracyPercent      int `json:"accuracyPercent"`
	RemainingTimePercent int `json:"remainingTimePercent"`
}

// Validate checks both percentages are within [0,100].
func (r Result) Validate() error {
	if r.AccuracyPercent < 0 || r.AccuracyPercent > 100 {
		return battle.Validation("accuracyPercent", "must be within [0,100]")
	}
	if r.RemainingTimePercent < 0 || r.RemainingTimePercent > 100 {
		return battle.Validation("remainingTimePercent", "must be within [0,100]")
	}
	return nil
}

func (r Result) standing() scoring.Standing {
	return scoring.Standing{AccuracyPercent: r.AccuracyPercent, RemainingTimePercent: r.RemainingTimePercent}
}

// Response is what a player sees after submitting or polling.
type Response struct {
	IsComplete      bool            `json:"isComplete"`
	Phase           Phase           `json:"phase"`
	Resolution      Resolution      `json:"resolution,omitempty"`
	MyOutcome       *battle.Outcome `json:"myOutcome"`
	OpponentOutcome *battle.Outcome `json:"opponentOutcome,omitempty"`
	MyResult        *Result         `json:"myResult,omitempty"`
	OpponentResult  *Result         `json:"opponentResult,omitempty"`
}

// Snapshot is the full reconciliation state. It is what gets cached and persisted.
type Snapshot struct {
	RoomID      uuid.UUID                    `json:"roomId"`
	Players     [2]uuid.UUID                 `json:"players"`
	Phase       Phase                        `json:"phase"`
	Resolution  Resolution                   `json:"resolution,omitempty"`
	Results     map[uuid.UUID]Result         `json:"results"`
	Outcomes    map[uuid.UUID]battle.Outcome `json:"outcomes,omitempty"`
	CompletedAt *time.Time                   `json:"completedAt,omitempty"`
}

// View projects the snapshot onto one participant.
func (s Snapshot) View(playerID uuid.UUID) (Response, error) {
	opp, ok := s.opponent(playerID)
	if !ok {
		return Response{}, battle.AccessDenied("not a participant of this match")
	}
	resp := Response{
		IsComplete: s.Phase == PhaseComplete,
		Phase:      s.Phase,
		Resolution: s.Resolution,
	}
	if r, ok := s.Results[playerID]; ok {
		resp.MyResult = &r
	}
	if !resp.IsComplete {
		return resp, nil
	}
	if o, ok := s.Outcomes[playerID]; ok {
		resp.MyOutcome = &o
	}
	if o, ok := s.Outcomes[opp]; ok {
		resp.OpponentOutcome = &o
	}
	if r, ok := s.Results[opp]; ok {
		resp.OpponentResult = &r
	}
	return resp, nil
}

func (s Snapshot) opponent(playerID uuid.UUID) (uuid.UUID, bool) {
	switch playerID {
	case s.Players[0]:
		return s.Players[1], true
	case s.Players[1]:
		return s.Players[0], true
	}
	return uuid.Nil, false
}

// Reconciler pairs two independently arriving results into one outcome.
// Callers serialize access; the owning Match holds the lock.
type Reconciler struct {
	snap Snapshot
}

// NewReconciler starts in AwaitingBoth.
func NewReconciler(roomID, a, b uuid.UUID) *Reconciler {
	return &Reconciler{snap: Snapshot{
		RoomID:  roomID,
		Players: [2]uuid.UUID{a, b},
		Phase:   PhaseAwaitingBoth,
		Results: make(map[uuid.UUID]Result, 2),
	}}
}

func (r *Reconciler) Phase() Phase { return r.snap.Phase }

// Responded reports whether the player has a result on file.
func (r *Reconciler) Responded(playerID uuid.UUID) bool {
	_, ok := r.snap.Results[playerID]
	return ok
}

// Submit records the player's result. Resubmission overwrites until the match completes.
func (r *Reconciler) Submit(now time.Time, playerID uuid.UUID, res Result) (Response, error) {
	opp, ok := r.snap.opponent(playerID)
	if !ok {
		return Response{}, battle.AccessDenied("not a participant of this match")
	}
	if r.snap.Phase == PhaseComplete {
		return Response{}, battle.ErrAlreadyComplete
	}
	if err := res.Validate(); err != nil {
		return Response{}, err
	}

	r.snap.Results[playerID] = res
	if oppRes, ok := r.snap.Results[opp]; ok {
		mine, theirs := scoring.Compare(res.standing(), oppRes.standing())
		r.complete(now, ResolutionCompared, map[uuid.UUID]battle.Outcome{playerID: mine, opp: theirs})
	} else {
		r.snap.Phase = PhaseAwaitingOpponent
	}
	return r.snap.View(playerID)
}

// Forfeit completes an AwaitingOpponent match in favor of the player who responded.
func (r *Reconciler) Forfeit(now time.Time, nonResponder uuid.UUID) error {
	responder, ok := r.snap.opponent(nonResponder)
	if !ok {
		return battle.AccessDenied("not a participant of this match")
	}
	if r.snap.Phase != PhaseAwaitingOpponent {
		return battle.InvalidState(fmt.Sprintf("cannot forfeit in phase %s", r.snap.Phase))
	}
	if !r.Responded(responder) || r.Responded(nonResponder) {
		return battle.InvalidState("forfeit requires exactly the opponent to have responded")
	}
	r.complete(now, ResolutionForfeit, map[uuid.UUID]battle.Outcome{
		responder:    battle.OutcomeWin,
		nonResponder: battle.OutcomeLose,
	})
	return nil
}

// ResolveTimeout completes an AwaitingBoth match once the deadline has passed.
// forced holds the timeout-finalized results used by TimeoutCompare.
func (r *Reconciler) ResolveTimeout(now time.Time, policy TimeoutPolicy, forced map[uuid.UUID]Result) error {
	if r.snap.Phase != PhaseAwaitingBoth {
		return battle.InvalidState(fmt.Sprintf("cannot resolve timeout in phase %s", r.snap.Phase))
	}
	a, b := r.snap.Players[0], r.snap.Players[1]
	if policy == TimeoutCompare {
		if _, ok := forced[a]; !ok {
			return fmt.Errorf("timeout compare needs both forced results")
		}
		if _, ok := forced[b]; !ok {
			return fmt.Errorf("timeout compare needs both forced results")
		}
	}
	for id, res := range forced {
		if _, ok := r.snap.opponent(id); ok {
			r.snap.Results[id] = res
		}
	}

	switch policy {
	case TimeoutCompare:
		oa, ob := scoring.Compare(forced[a].standing(), forced[b].standing())
		r.complete(now, ResolutionTimeoutCompared, map[uuid.UUID]battle.Outcome{a: oa, b: ob})
	case TimeoutDoubleLoss:
		r.complete(now, ResolutionTimeoutDoubleLoss, map[uuid.UUID]battle.Outcome{a: battle.OutcomeLose, b: battle.OutcomeLose})
	default:
		r.complete(now, ResolutionTimeoutDraw, map[uuid.UUID]battle.Outcome{a: battle.OutcomeDraw, b: battle.OutcomeDraw})
	}
	return nil
}

func (r *Reconciler) complete(now time.Time, resolution Resolution, outcomes map[uuid.UUID]battle.Outcome) {
	r.snap.Phase = PhaseComplete
	r.snap.Resolution = resolution
	r.snap.Outcomes = outcomes
	r.snap.CompletedAt = &now
}

// Get is a read-only poll; after completion it returns the stored outcome.
func (r *Reconciler) Get(playerID uuid.UUID) (Response, error) {
	return r.snap.View(playerID)
}

// Snapshot returns a copy of the full state.
func (r *Reconciler) Snapshot() Snapshot {
	out := r.snap
	out.Results = make(map[uuid.UUID]Result, len(r.snap.Results))
	for k, v := range r.snap.Results {
		out.Results[k] = v
	}
	if r.snap.Outcomes != nil {
		out.Outcomes = make(map[uuid.UUID]battle.Outcome, len(r.snap.Outcomes))
		for k, v := range r.snap.Outcomes {
			out.Outcomes[k] = v
		}
	}
	return out
}

// restoreResult reinstates a pending result during recovery. Two results on file complete the match.
func (r *Reconciler) restoreResult(now time.Time, playerID uuid.UUID, res Result) {
	opp, ok := r.snap.opponent(playerID)
	if !ok || r.snap.Phase == PhaseComplete {
		return
	}
	r.snap.Results[playerID] = res
	oppRes, ok := r.snap.Results[opp]
	if !ok {
		r.snap.Phase = PhaseAwaitingOpponent
		return
	}
	mine, theirs := scoring.Compare(res.standing(), oppRes.standing())
	r.complete(now, ResolutionCompared, map[uuid.UUID]battle.Outcome{playerID: mine, opp: theirs})
}

// restoreComplete reinstates a finished match during recovery.
func (r *Reconciler) restoreComplete(snap Snapshot) {
	r.snap = snap
	if r.snap.Results == nil {
		r.snap.Results = make(map[uuid.UUID]Result, 2)
	}
}
