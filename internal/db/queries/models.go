package queries

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Problem struct {
	ProblemID    int64              `json:"problem_id"`
	Title        string             `json:"title"`
	Prompt       string             `json:"prompt"`
	Subject      string             `json:"subject"`
	Kind         string             `json:"kind"`
	Options      []byte             `json:"options"`
	CorrectIndex pgtype.Int4        `json:"correct_index"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
}

type Room struct {
	RoomID        pgtype.UUID        `json:"room_id"`
	Title         string             `json:"title"`
	Mode          string             `json:"mode"`
	IsPrivate     bool               `json:"is_private"`
	PasswordHash  string             `json:"password_hash"`
	Status        string             `json:"status"`
	HostID        pgtype.UUID        `json:"host_id"`
	HostNickname  string             `json:"host_nickname"`
	HostGrade     string             `json:"host_grade"`
	GuestID       pgtype.UUID        `json:"guest_id"`
	GuestNickname string             `json:"guest_nickname"`
	GuestGrade    string             `json:"guest_grade"`
	ProblemIds    []int64            `json:"problem_ids"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
	UpdatedAt     pgtype.Timestamptz `json:"updated_at"`
	StartedAt     pgtype.Timestamptz `json:"started_at"`
	FinishedAt    pgtype.Timestamptz `json:"finished_at"`
}

type Match struct {
	RoomID          pgtype.UUID        `json:"room_id"`
	Mode            string             `json:"mode"`
	StartedAt       pgtype.Timestamptz `json:"started_at"`
	DurationSeconds int32              `json:"duration_seconds"`
	ProblemIds      []int64            `json:"problem_ids"`
	Status          string             `json:"status"`
	Resolution      string             `json:"resolution"`
	Result          []byte             `json:"result"`
	CompletedAt     pgtype.Timestamptz `json:"completed_at"`
}

type MatchPlayer struct {
	RoomID     pgtype.UUID `json:"room_id"`
	PlayerID   pgtype.UUID `json:"player_id"`
	Seat       int16       `json:"seat"`
	Answers    []byte      `json:"answers"`
	Submission []byte      `json:"submission"`
	Result     []byte      `json:"result"`
}
