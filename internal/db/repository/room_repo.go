package repository

import (
	"context"
	"fmt"

	"github.com/loop-dev/loop-battle/internal/battle"
	"github.com/loop-dev/loop-battle/internal/db/queries"
)

type roomStore interface {
	InsertRoom(ctx context.Context, arg queries.InsertRoomParams) error
	UpdateRoom(ctx context.Context, arg queries.UpdateRoomParams) (int64, error)
	ListOpenRooms(ctx context.Context) ([]queries.Room, error)
}

// RoomRepository persists room rows for the room store's write-through.
type RoomRepository struct {
	store roomStore
}

func NewRoomRepository(store roomStore) *RoomRepository {
	return &RoomRepository{store: store}
}

// InsertRoom stores a freshly created room.
func (r *RoomRepository) InsertRoom(ctx context.Context, rm battle.Room) error {
	params := queries.InsertRoomParams{
		RoomID:       pgUUID(rm.ID),
		Title:        rm.Title,
		Mode:         string(rm.Mode),
		IsPrivate:    rm.Private,
		PasswordHash: rm.PasswordHash,
		Status:       string(rm.Status),
		HostID:       pgUUID(rm.Host.ID),
		HostNickname: rm.Host.Nickname,
		HostGrade:    string(rm.Host.Grade),
		ProblemIds:   rm.ProblemIDs,
		CreatedAt:    pgTime(rm.CreatedAt),
		UpdatedAt:    pgTime(rm.UpdatedAt),
		StartedAt:    pgTimePtr(rm.StartedAt),
		FinishedAt:   pgTimePtr(rm.FinishedAt),
	}
	if rm.Guest != nil {
		params.GuestID = pgUUID(rm.Guest.ID)
		params.GuestNickname = rm.Guest.Nickname
		params.GuestGrade = string(rm.Guest.Grade)
	}
	return r.store.InsertRoom(ctx, params)
}

// UpdateRoom writes the mutable columns. A missing row is NotFound.
func (r *RoomRepository) UpdateRoom(ctx context.Context, rm battle.Room) error {
	params := queries.UpdateRoomParams{
		RoomID:     pgUUID(rm.ID),
		Title:      rm.Title,
		Status:     string(rm.Status),
		ProblemIds: rm.ProblemIDs,
		UpdatedAt:  pgTime(rm.UpdatedAt),
		StartedAt:  pgTimePtr(rm.StartedAt),
		FinishedAt: pgTimePtr(rm.FinishedAt),
	}
	if rm.Guest != nil {
		params.GuestID = pgUUID(rm.Guest.ID)
		params.GuestNickname = rm.Guest.Nickname
		params.GuestGrade = string(rm.Guest.Grade)
	}
	n, err := r.store.UpdateRoom(ctx, params)
	if err != nil {
		return err
	}
	if n == 0 {
		return battle.NotFound(fmt.Sprintf("room %s not found", rm.ID))
	}
	return nil
}

// LoadRooms returns every room that is not closed.
func (r *RoomRepository) LoadRooms(ctx context.Context) ([]battle.Room, error) {
	rows, err := r.store.ListOpenRooms(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]battle.Room, 0, len(rows))
	for _, row := range rows {
		out = append(out, roomFromRow(row))
	}
	return out, nil
}

func roomFromRow(row queries.Room) battle.Room {
	rm := battle.Room{
		ID:           fromPGUUID(row.RoomID),
		Title:        row.Title,
		Mode:         battle.Mode(row.Mode),
		Private:      row.IsPrivate,
		PasswordHash: row.PasswordHash,
		Status:       battle.RoomStatus(row.Status),
		Host: battle.Player{
			ID:       fromPGUUID(row.HostID),
			Nickname: row.HostNickname,
			Grade:    battle.Grade(row.HostGrade),
		},
		ProblemIDs: row.ProblemIds,
		CreatedAt:  row.CreatedAt.Time.UTC(),
		UpdatedAt:  row.UpdatedAt.Time.UTC(),
		StartedAt:  fromPGTimePtr(row.StartedAt),
		FinishedAt: fromPGTimePtr(row.FinishedAt),
	}
	if row.GuestID.Valid {
		rm.Guest = &battle.Player{
			ID:       fromPGUUID(row.GuestID),
			Nickname: row.GuestNickname,
			Grade:    battle.Grade(row.GuestGrade),
		}
	}
	return rm
}
