package match

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loop-dev/loop-battle/internal/battle"
)

// Timer is a cancellable scheduled callback.
type Timer interface {
	Stop() bool
}

// Clock abstracts time so deadline handling can be driven by tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Match is the live state of one started room. mu guards every field below it;
// nothing else in the service is held while a match is mutated except the room store.
type Match struct {
	mu         sync.Mutex
	room       battle.Room
	session    *Session
	reconciler *Reconciler
	timer      Timer
	completed  bool
}

func (m *Match) roomID() uuid.UUID { return m.room.ID }

func (m *Match) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// PlayerRecord is one player's persisted slice of a match.
type PlayerRecord struct {
	PlayerID   uuid.UUID
	Answers    map[int64]battle.Answer
	Submission *Submission
	Result     *Result
}

// MatchRecord is the persisted shape of an in-progress match, enough to rebuild it after a restart.
type MatchRecord struct {
	RoomID     uuid.UUID
	Mode       battle.Mode
	StartedAt  time.Time
	Duration   time.Duration
	ProblemIDs []int64
	Players    []PlayerRecord
}

// Store persists match progress. Every write happens after the in-memory
// transition succeeded.
type Store interface {
	CreateMatch(ctx context.Context, rec MatchRecord) error
	SaveAnswer(ctx context.Context, roomID, playerID uuid.UUID, problemID int64, answer battle.Answer) error
	SaveSubmission(ctx context.Context, roomID, playerID uuid.UUID, sub Submission) error
	SaveResult(ctx context.Context, roomID, playerID uuid.UUID, res Result) error
	CompleteMatch(ctx context.Context, snap Snapshot) error
	ListActiveMatches(ctx context.Context) ([]MatchRecord, error)
	// LoadResult returns a battle.NotFound error when the match has no stored result.
	LoadResult(ctx context.Context, roomID uuid.UUID) (Snapshot, error)
}

// ProblemSource resolves a room's problem ids in order.
type ProblemSource interface {
	GetByIDs(ctx context.Context, ids []int64) ([]battle.Problem, error)
}
