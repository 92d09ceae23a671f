package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/loop-dev/loop-battle/internal/battle"
	"github.com/loop-dev/loop-battle/internal/db/queries"
	"github.com/loop-dev/loop-battle/internal/match"
)

type matchStore interface {
	CreateMatch(ctx context.Context, arg queries.CreateMatchParams) error
	SaveMatchAnswer(ctx context.Context, arg queries.SaveMatchAnswerParams) (int64, error)
	SaveMatchSubmission(ctx context.Context, arg queries.SaveMatchSubmissionParams) (int64, error)
	SaveMatchResult(ctx context.Context, arg queries.SaveMatchResultParams) (int64, error)
	CompleteMatch(ctx context.Context, arg queries.CompleteMatchParams) (int64, error)
	ListActiveMatches(ctx context.Context) ([]queries.Match, error)
	ListMatchPlayers(ctx context.Context, roomIDs []pgtype.UUID) ([]queries.MatchPlayer, error)
	GetMatchResult(ctx context.Context, roomID pgtype.UUID) ([]byte, error)
}

// MatchRepository stores match progress and final results.
type MatchRepository struct {
	store matchStore
}

var _ match.Store = (*MatchRepository)(nil)

// NewMatchRepository constructs a new match repository.
func NewMatchRepository(store matchStore) *MatchRepository {
	return &MatchRepository{store: store}
}

// CreateMatch persists the match row and both player seats.
func (r *MatchRepository) CreateMatch(ctx context.Context, rec match.MatchRecord) error {
	players := make([]pgtype.UUID, 0, len(rec.Players))
	for _, p := range rec.Players {
		players = append(players, pgUUID(p.PlayerID))
	}
	return r.store.CreateMatch(ctx, queries.CreateMatchParams{
		RoomID:          pgUUID(rec.RoomID),
		Mode:            string(rec.Mode),
		StartedAt:       pgTime(rec.StartedAt),
		DurationSeconds: int32(rec.Duration / time.Second),
		ProblemIds:      rec.ProblemIDs,
		PlayerIds:       players,
	})
}

// SaveAnswer overwrites one answer in the player's answer map.
func (r *MatchRepository) SaveAnswer(ctx context.Context, roomID, playerID uuid.UUID, problemID int64, answer battle.Answer) error {
	data, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	n, err := r.store.SaveMatchAnswer(ctx, queries.SaveMatchAnswerParams{
		RoomID:    pgUUID(roomID),
		PlayerID:  pgUUID(playerID),
		ProblemID: strconv.FormatInt(problemID, 10),
		Answer:    data,
	})
	return seatWritten(n, err, roomID, playerID)
}

// SaveSubmission stores the sealed submission.
func (r *MatchRepository) SaveSubmission(ctx context.Context, roomID, playerID uuid.UUID, sub match.Submission) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	n, err := r.store.SaveMatchSubmission(ctx, queries.SaveMatchSubmissionParams{
		RoomID:     pgUUID(roomID),
		PlayerID:   pgUUID(playerID),
		Submission: data,
	})
	return seatWritten(n, err, roomID, playerID)
}

// SaveResult stores the player's slot in the reconciler.
func (r *MatchRepository) SaveResult(ctx context.Context, roomID, playerID uuid.UUID, res match.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	n, err := r.store.SaveMatchResult(ctx, queries.SaveMatchResultParams{
		RoomID:   pgUUID(roomID),
		PlayerID: pgUUID(playerID),
		Result:   data,
	})
	return seatWritten(n, err, roomID, playerID)
}

// CompleteMatch marks the match complete and stores the final snapshot.
func (r *MatchRepository) CompleteMatch(ctx context.Context, snap match.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	completedAt := pgtype.Timestamptz{}
	if snap.CompletedAt != nil {
		completedAt = pgTime(*snap.CompletedAt)
	}
	n, err := r.store.CompleteMatch(ctx, queries.CompleteMatchParams{
		RoomID:      pgUUID(snap.RoomID),
		Resolution:  string(snap.Resolution),
		Result:      data,
		CompletedAt: completedAt,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return battle.NotFound(fmt.Sprintf("match %s not found", snap.RoomID))
	}
	return nil
}

// ListActiveMatches loads every in-progress match with its player rows.
func (r *MatchRepository) ListActiveMatches(ctx context.Context) ([]match.MatchRecord, error) {
	rows, err := r.store.ListActiveMatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active matches: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]pgtype.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.RoomID)
	}
	players, err := r.store.ListMatchPlayers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list match players: %w", err)
	}
	byRoom := make(map[uuid.UUID][]match.PlayerRecord, len(rows))
	for _, p := range players {
		rec, err := playerFromRow(p)
		if err != nil {
			return nil, err
		}
		roomID := fromPGUUID(p.RoomID)
		byRoom[roomID] = append(byRoom[roomID], rec)
	}

	out := make([]match.MatchRecord, 0, len(rows))
	for _, row := range rows {
		roomID := fromPGUUID(row.RoomID)
		out = append(out, match.MatchRecord{
			RoomID:     roomID,
			Mode:       battle.Mode(row.Mode),
			StartedAt:  row.StartedAt.Time.UTC(),
			Duration:   time.Duration(row.DurationSeconds) * time.Second,
			ProblemIDs: row.ProblemIds,
			Players:    byRoom[roomID],
		})
	}
	return out, nil
}

// LoadResult returns the stored snapshot of a completed match.
func (r *MatchRepository) LoadResult(ctx context.Context, roomID uuid.UUID) (match.Snapshot, error) {
	data, err := r.store.GetMatchResult(ctx, pgUUID(roomID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return match.Snapshot{}, battle.NotFound(fmt.Sprintf("no result for match %s", roomID))
		}
		return match.Snapshot{}, err
	}
	var snap match.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return match.Snapshot{}, fmt.Errorf("decode result %s: %w", roomID, err)
	}
	return snap, nil
}

func playerFromRow(row queries.MatchPlayer) (match.PlayerRecord, error) {
	rec := match.PlayerRecord{PlayerID: fromPGUUID(row.PlayerID)}
	if len(row.Answers) > 0 {
		if err := json.Unmarshal(row.Answers, &rec.Answers); err != nil {
			return rec, fmt.Errorf("decode answers for %s: %w", rec.PlayerID, err)
		}
	}
	if len(row.Submission) > 0 {
		var sub match.Submission
		if err := json.Unmarshal(row.Submission, &sub); err != nil {
			return rec, fmt.Errorf("decode submission for %s: %w", rec.PlayerID, err)
		}
		rec.Submission = &sub
	}
	if len(row.Result) > 0 {
		var res match.Result
		if err := json.Unmarshal(row.Result, &res); err != nil {
			return rec, fmt.Errorf("decode result for %s: %w", rec.PlayerID, err)
		}
		rec.Result = &res
	}
	return rec, nil
}

func seatWritten(n int64, err error, roomID, playerID uuid.UUID) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return battle.NotFound(fmt.Sprintf("player %s has no seat in match %s", playerID, roomID))
	}
	return nil
}
