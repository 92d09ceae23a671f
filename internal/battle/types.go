package battle

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Mode selects the battle format of a room.
type Mode string

const (
	ModeCodeTest Mode = "code_test"
	ModeMiniQuiz Mode = "mini_quiz"
)

// ParseMode validates a client-supplied mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeCodeTest, ModeMiniQuiz:
		return Mode(s), nil
	}
	return "", Validation("mode", fmt.Sprintf("unknown mode %q", s))
}

// RoomStatus is the lifecycle state of a room.
type RoomStatus string

const (
	RoomStatusWaiting    RoomStatus = "waiting"
	RoomStatusFull       RoomStatus = "full"
	RoomStatusInProgress RoomStatus = "in_progress"
	RoomStatusFinished   RoomStatus = "finished"
	RoomStatusClosed     RoomStatus = "closed"
)

// RoomStatuses lists every status in lifecycle order.
func RoomStatuses() []RoomStatus {
	return []RoomStatus{RoomStatusWaiting, RoomStatusFull, RoomStatusInProgress, RoomStatusFinished, RoomStatusClosed}
}

// Active reports whether a room still counts against its host's one-room limit.
func (s RoomStatus) Active() bool {
	return s == RoomStatusWaiting || s == RoomStatusFull || s == RoomStatusInProgress
}

// ParseRoomStatus validates a status filter value.
func ParseRoomStatus(s string) (RoomStatus, error) {
	switch RoomStatus(s) {
	case RoomStatusWaiting, RoomStatusFull, RoomStatusInProgress, RoomStatusFinished, RoomStatusClosed:
		return RoomStatus(s), nil
	}
	return "", Validation("status", fmt.Sprintf("unknown status %q", s))
}

// Grade is a player's tier label shown in the lobby.
type Grade string

var grades = []Grade{"A+", "A0", "B+", "B0", "C+", "C0", "D+", "D0", "F"}

// ParseGrade validates a grade label. An empty string is allowed and means unranked.
func ParseGrade(s string) (Grade, error) {
	if s == "" || slices.Contains(grades, Grade(s)) {
		return Grade(s), nil
	}
	return "", Validation("grade", fmt.Sprintf("unknown grade %q", s))
}

// Player identifies a participant. Nickname and grade are snapshots taken from the access token.
type Player struct {
	ID       uuid.UUID
	Nickname string
	Grade    Grade
}

// Room is a two-seat battle room.
type Room struct {
	ID           uuid.UUID
	Title        string
	Mode         Mode
	Private      bool
	PasswordHash string
	Status       RoomStatus
	Host         Player
	Guest        *Player
	ProblemIDs   []int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// Capacity is fixed for 1v1 battles.
const Capacity = 2

// Clone returns a deep copy safe to hand out of a locked section.
func (r Room) Clone() Room {
	out := r
	out.ProblemIDs = slices.Clone(r.ProblemIDs)
	if r.Guest != nil {
		g := *r.Guest
		out.Guest = &g
	}
	if r.StartedAt != nil {
		t := *r.StartedAt
		out.StartedAt = &t
	}
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		out.FinishedAt = &t
	}
	return out
}

// IsParticipant reports whether the player is the host or the guest.
func (r Room) IsParticipant(id uuid.UUID) bool {
	return r.Host.ID == id || (r.Guest != nil && r.Guest.ID == id)
}

// Players returns the bound participants, host first.
func (r Room) Players() []Player {
	if r.Guest == nil {
		return []Player{r.Host}
	}
	return []Player{r.Host, *r.Guest}
}

// Opponent returns the other participant of a started room.
func (r Room) Opponent(id uuid.UUID) (Player, bool) {
	switch {
	case r.Guest == nil:
		return Player{}, false
	case r.Host.ID == id:
		return *r.Guest, true
	case r.Guest.ID == id:
		return r.Host, true
	}
	return Player{}, false
}

// Outcome is a player's final result in a match.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLose Outcome = "lose"
	OutcomeDraw Outcome = "draw"
)

// Opposite returns the outcome the other player receives in a normal resolution.
func (o Outcome) Opposite() Outcome {
	switch o {
	case OutcomeWin:
		return OutcomeLose
	case OutcomeLose:
		return OutcomeWin
	}
	return o
}
