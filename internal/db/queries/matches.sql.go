package queries

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// createMatch writes the match row and both seats in one statement.
const createMatch = `
WITH m AS (
    INSERT INTO matches (room_id, mode, started_at, duration_seconds, problem_ids)
    VALUES ($1, $2, $3, $4, $5)
    RETURNING room_id
)
INSERT INTO match_players (room_id, player_id, seat)
SELECT m.room_id, p.player_id, (p.seat - 1)::smallint
FROM m, unnest($6::uuid[]) WITH ORDINALITY AS p(player_id, seat)`

type CreateMatchParams struct {
	RoomID          pgtype.UUID
	Mode            string
	StartedAt       pgtype.Timestamptz
	DurationSeconds int32
	ProblemIds      []int64
	PlayerIds       []pgtype.UUID
}

func (q *Queries) CreateMatch(ctx context.Context, arg CreateMatchParams) error {
	_, err := q.db.Exec(ctx, createMatch,
		arg.RoomID,
		arg.Mode,
		arg.StartedAt,
		arg.DurationSeconds,
		arg.ProblemIds,
		arg.PlayerIds,
	)
	return err
}

const saveMatchAnswer = `
UPDATE match_players
SET answers = jsonb_set(answers, ARRAY[$3::text], $4::jsonb, true)
WHERE room_id = $1 AND player_id = $2`

type SaveMatchAnswerParams struct {
	RoomID    pgtype.UUID
	PlayerID  pgtype.UUID
	ProblemID string
	Answer    []byte
}

func (q *Queries) SaveMatchAnswer(ctx context.Context, arg SaveMatchAnswerParams) (int64, error) {
	tag, err := q.db.Exec(ctx, saveMatchAnswer, arg.RoomID, arg.PlayerID, arg.ProblemID, arg.Answer)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// The first sealed submission wins; later writes leave it in place.
const saveMatchSubmission = `
UPDATE match_players
SET submission = COALESCE(submission, $3)
WHERE room_id = $1 AND player_id = $2`

type SaveMatchSubmissionParams struct {
	RoomID     pgtype.UUID
	PlayerID   pgtype.UUID
	Submission []byte
}

func (q *Queries) SaveMatchSubmission(ctx context.Context, arg SaveMatchSubmissionParams) (int64, error) {
	tag, err := q.db.Exec(ctx, saveMatchSubmission, arg.RoomID, arg.PlayerID, arg.Submission)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const saveMatchResult = `
UPDATE match_players
SET result = $3
WHERE room_id = $1 AND player_id = $2`

type SaveMatchResultParams struct {
	RoomID   pgtype.UUID
	PlayerID pgtype.UUID
	Result   []byte
}

func (q *Queries) SaveMatchResult(ctx context.Context, arg SaveMatchResultParams) (int64, error) {
	tag, err := q.db.Exec(ctx, saveMatchResult, arg.RoomID, arg.PlayerID, arg.Result)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const completeMatch = `
UPDATE matches
SET status = 'complete',
    resolution = $2,
    result = $3,
    completed_at = $4
WHERE room_id = $1`

type CompleteMatchParams struct {
	RoomID      pgtype.UUID
	Resolution  string
	Result      []byte
	CompletedAt pgtype.Timestamptz
}

func (q *Queries) CompleteMatch(ctx context.Context, arg CompleteMatchParams) (int64, error) {
	tag, err := q.db.Exec(ctx, completeMatch, arg.RoomID, arg.Resolution, arg.Result, arg.CompletedAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listActiveMatches = `
SELECT room_id, mode, started_at, duration_seconds, problem_ids, status, resolution, result, completed_at
FROM matches
WHERE status = 'in_progress'
ORDER BY started_at`

func (q *Queries) ListActiveMatches(ctx context.Context) ([]Match, error) {
	rows, err := q.db.Query(ctx, listActiveMatches)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Match
	for rows.Next() {
		var i Match
		if err := rows.Scan(
			&i.RoomID,
			&i.Mode,
			&i.StartedAt,
			&i.DurationSeconds,
			&i.ProblemIds,
			&i.Status,
			&i.Resolution,
			&i.Result,
			&i.CompletedAt,
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

const listMatchPlayers = `
SELECT room_id, player_id, seat, answers, submission, result
FROM match_players
WHERE room_id = ANY($1::uuid[])
ORDER BY room_id, seat`

func (q *Queries) ListMatchPlayers(ctx context.Context, roomIDs []pgtype.UUID) ([]MatchPlayer, error) {
	rows, err := q.db.Query(ctx, listMatchPlayers, roomIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MatchPlayer
	for rows.Next() {
		var i MatchPlayer
		if err := rows.Scan(
			&i.RoomID,
			&i.PlayerID,
			&i.Seat,
			&i.Answers,
			&i.Submission,
			&i.Result,
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

const getMatchResult = `
SELECT result
FROM matches
WHERE room_id = $1 AND status = 'complete'`

func (q *Queries) GetMatchResult(ctx context.Context, roomID pgtype.UUID) ([]byte, error) {
	row := q.db.QueryRow(ctx, getMatchResult, roomID)
	var result []byte
	err := row.Scan(&result)
	return result, err
}
