package queries

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const roomColumns = `room_id, title, mode, is_private, password_hash, status,
       host_id, host_nickname, host_grade, guest_id, guest_nickname, guest_grade,
       problem_ids, created_at, updated_at, started_at, finished_at`

const insertRoom = `
INSERT INTO rooms (
    room_id, title, mode, is_private, password_hash, status,
    host_id, host_nickname, host_grade, guest_id, guest_nickname, guest_grade,
    problem_ids, created_at, updated_at, started_at, finished_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
)`

type InsertRoomParams struct {
	RoomID        pgtype.UUID
	Title         string
	Mode          string
	IsPrivate     bool
	PasswordHash  string
	Status        string
	HostID        pgtype.UUID
	HostNickname  string
	HostGrade     string
	GuestID       pgtype.UUID
	GuestNickname string
	GuestGrade    string
	ProblemIds    []int64
	CreatedAt     pgtype.Timestamptz
	UpdatedAt     pgtype.Timestamptz
	StartedAt     pgtype.Timestamptz
	FinishedAt    pgtype.Timestamptz
}

func (q *Queries) InsertRoom(ctx context.Context, arg InsertRoomParams) error {
	_, err := q.db.Exec(ctx, insertRoom,
		arg.RoomID,
		arg.Title,
		arg.Mode,
		arg.IsPrivate,
		arg.PasswordHash,
		arg.Status,
		arg.HostID,
		arg.HostNickname,
		arg.HostGrade,
		arg.GuestID,
		arg.GuestNickname,
		arg.GuestGrade,
		arg.ProblemIds,
		arg.CreatedAt,
		arg.UpdatedAt,
		arg.StartedAt,
		arg.FinishedAt,
	)
	return err
}

const updateRoom = `
UPDATE rooms
SET title = $2,
    status = $3,
    guest_id = $4,
    guest_nickname = $5,
    guest_grade = $6,
    problem_ids = $7,
    updated_at = $8,
    started_at = $9,
    finished_at = $10
WHERE room_id = $1`

type UpdateRoomParams struct {
	RoomID        pgtype.UUID
	Title         string
	Status        string
	GuestID       pgtype.UUID
	GuestNickname string
	GuestGrade    string
	ProblemIds    []int64
	UpdatedAt     pgtype.Timestamptz
	StartedAt     pgtype.Timestamptz
	FinishedAt    pgtype.Timestamptz
}

// UpdateRoom returns the number of rows touched so callers can detect a missing room.
func (q *Queries) UpdateRoom(ctx context.Context, arg UpdateRoomParams) (int64, error) {
	tag, err := q.db.Exec(ctx, updateRoom,
		arg.RoomID,
		arg.Title,
		arg.Status,
		arg.GuestID,
		arg.GuestNickname,
		arg.GuestGrade,
		arg.ProblemIds,
		arg.UpdatedAt,
		arg.StartedAt,
		arg.FinishedAt,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listOpenRooms = `
SELECT ` + roomColumns + `
FROM rooms
WHERE status <> 'closed'
ORDER BY created_at`

func (q *Queries) ListOpenRooms(ctx context.Context) ([]Room, error) {
	rows, err := q.db.Query(ctx, listOpenRooms)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Room
	for rows.Next() {
		var i Room
		if err := rows.Scan(
			&i.RoomID,
			&i.Title,
			&i.Mode,
			&i.IsPrivate,
			&i.PasswordHash,
			&i.Status,
			&i.HostID,
			&i.HostNickname,
			&i.HostGrade,
			&i.GuestID,
			&i.GuestNickname,
			&i.GuestGrade,
			&i.ProblemIds,
			&i.CreatedAt,
			&i.UpdatedAt,
			&i.StartedAt,
			&i.FinishedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
