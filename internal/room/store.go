package room

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/loop-dev/loop-battle/internal/auth"
	"github.com/loop-dev/loop-battle/internal/battle"
)

const maxTitleLength = 100

// Repository persists rooms. Writes go through on every state change.
type Repository interface {
	InsertRoom(ctx context.Context, r battle.Room) error
	UpdateRoom(ctx context.Context, r battle.Room) error
	LoadRooms(ctx context.Context) ([]battle.Room, error)
}

// ProblemResolver checks problem ids exist.
type ProblemResolver interface {
	GetByIDs(ctx context.Context, ids []int64) ([]battle.Problem, error)
}

// Options tunes room validation.
type Options struct {
	MaxProblems int
	Now         func() time.Time
}

// Store owns room entities and their lifecycle transitions.
type Store struct {
	repo     Repository
	problems ProblemResolver
	hasher   *auth.PasswordHasher
	opts     Options
	logger   zerolog.Logger

	mu    sync.RWMutex
	rooms map[uuid.UUID]*battle.Room
}

// NewStore creates a room store.
func NewStore(repo Repository, problems ProblemResolver, hasher *auth.PasswordHasher, opts Options, logger zerolog.Logger) *Store {
	if opts.MaxProblems <= 0 {
		opts.MaxProblems = 20
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		repo:     repo,
		problems: problems,
		hasher:   hasher,
		opts:     opts,
		logger:   logger.With().Str("component", "room_store").Logger(),
		rooms:    make(map[uuid.UUID]*battle.Room),
	}
}

// Load restores persisted rooms into memory. Closed rooms are skipped.
func (s *Store) Load(ctx context.Context) error {
	rooms, err := s.repo.LoadRooms(ctx)
	if err != nil {
		return fmt.Errorf("load rooms: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rooms {
		if r.Status == battle.RoomStatusClosed {
			continue
		}
		rc := r.Clone()
		s.rooms[r.ID] = &rc
	}
	s.logger.Info().Int("rooms", len(s.rooms)).Msg("rooms restored")
	return nil
}

// CreateRequest is the validated input for Create.
type CreateRequest struct {
	Title      string
	Mode       battle.Mode
	Private    bool
	Password   string
	ProblemIDs []int64
	Host       battle.Player
}

// Create validates the request and opens a Waiting room owned by the host.
func (s *Store) Create(ctx context.Context, req CreateRequest) (battle.Room, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return battle.Room{}, battle.Validation("title", "title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return battle.Room{}, battle.Validation("title", fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	}
	if err := s.validateProblemCount(req.Mode, req.ProblemIDs); err != nil {
		return battle.Room{}, err
	}

	var hash string
	switch {
	case req.Private && req.Password == "":
		return battle.Room{}, battle.Validation("password", "private rooms require a password")
	case req.Private && !auth.ValidRoomPassword(req.Password):
		return battle.Room{}, battle.Validation("password", "password must be exactly 4 digits")
	case !req.Private && req.Password != "":
		return battle.Room{}, battle.Validation("password", "public rooms cannot have a password")
	case req.Private:
		h, err := s.hasher.Hash(req.Password)
		if err != nil {
			return battle.Room{}, err
		}
		hash = h
	}

	if _, err := s.problems.GetByIDs(ctx, req.ProblemIDs); err != nil {
		if battle.KindOf(err) == battle.KindNotFound {
			return battle.Room{}, battle.Validation("problemIds", err.Error())
		}
		return battle.Room{}, fmt.Errorf("resolve problems: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.activeRoomOf(req.Host.ID); ok {
		return battle.Room{}, battle.InvalidState(fmt.Sprintf("host already has an active room %s", existing))
	}

	now := s.opts.Now()
	r := battle.Room{
		ID:           uuid.New(),
		Title:        title,
		Mode:         req.Mode,
		Private:      req.Private,
		PasswordHash: hash,
		Status:       battle.RoomStatusWaiting,
		Host:         req.Host,
		ProblemIDs:   slices.Clone(req.ProblemIDs),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.InsertRoom(ctx, r); err != nil {
		return battle.Room{}, fmt.Errorf("insert room: %w", err)
	}
	s.rooms[r.ID] = &r

	s.logger.Info().
		Str("room_id", r.ID.String()).
		Str("host_id", r.Host.ID.String()).
		Str("mode", string(r.Mode)).
		Bool("private", r.Private).
		Msg("room created")

	return r.Clone(), nil
}

func (s *Store) validateProblemCount(mode battle.Mode, ids []int64) error {
	switch mode {
	case battle.ModeCodeTest:
		if len(ids) != 1 {
			return battle.Validation("problemIds", "code test rooms take exactly one problem")
		}
	case battle.ModeMiniQuiz:
		if len(ids) < 1 {
			return battle.Validation("problemIds", "mini quiz rooms need at least one problem")
		}
		if len(ids) > s.opts.MaxProblems {
			return battle.Validation("problemIds", fmt.Sprintf("mini quiz rooms take at most %d problems", s.opts.MaxProblems))
		}
	default:
		return battle.Validation("mode", fmt.Sprintf("unknown mode %q", mode))
	}
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return battle.Validation("problemIds", fmt.Sprintf("problem %d listed twice", id))
		}
		seen[id] = struct{}{}
	}
	return nil
}

// activeRoomOf must be called with s.mu held.
func (s *Store) activeRoomOf(hostID uuid.UUID) (uuid.UUID, bool) {
	for id, r := range s.rooms {
		if r.Host.ID == hostID && r.Status.Active() {
			return id, true
		}
	}
	return uuid.Nil, false
}

// Filter narrows List. Zero values match everything except Statuses,
// which defaults to Waiting and InProgress.
type Filter struct {
	Mode     battle.Mode
	Grade    battle.Grade
	Search   string
	Statuses []battle.RoomStatus
}

func (f Filter) match(r *battle.Room) bool {
	statuses := f.Statuses
	if len(statuses) == 0 {
		statuses = []battle.RoomStatus{battle.RoomStatusWaiting, battle.RoomStatusInProgress}
	}
	if !slices.Contains(statuses, r.Status) {
		return false
	}
	if f.Mode != "" && r.Mode != f.Mode {
		return false
	}
	if f.Grade != "" && r.Host.Grade != f.Grade {
		return false
	}
	if q := strings.TrimSpace(f.Search); q != "" && !strings.Contains(strings.ToLower(r.Title), strings.ToLower(q)) {
		return false
	}
	return true
}

// List yields matching rooms newest first. Each iteration takes a fresh snapshot.
func (s *Store) List(f Filter) iter.Seq[battle.Room] {
	return func(yield func(battle.Room) bool) {
		s.mu.RLock()
		matched := make([]battle.Room, 0, len(s.rooms))
		for _, r := range s.rooms {
			if f.match(r) {
				matched = append(matched, r.Clone())
			}
		}
		s.mu.RUnlock()

		slices.SortFunc(matched, func(a, b battle.Room) int {
			if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
				return c
			}
			return cmp.Compare(a.ID.String(), b.ID.String())
		})
		for _, r := range matched {
			if !yield(r) {
				return
			}
		}
	}
}

// Get returns a copy of the room.
func (s *Store) Get(roomID uuid.UUID) (battle.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return battle.Room{}, battle.NotFound(fmt.Sprintf("room %s not found", roomID))
	}
	return r.Clone(), nil
}

// VerifyPassword checks a private room's password. A missing room still pays for a
// bcrypt comparison before NotFound is returned.
func (s *Store) VerifyPassword(roomID uuid.UUID, password string) (bool, error) {
	s.mu.RLock()
	r, ok := s.rooms[roomID]
	var private bool
	var hash string
	if ok {
		private, hash = r.Private, r.PasswordHash
	}
	s.mu.RUnlock()

	if !ok {
		s.hasher.Verify("", password)
		return false, battle.NotFound(fmt.Sprintf("room %s not found", roomID))
	}
	if !private {
		return false, battle.Validation("password", "room is public")
	}
	return s.hasher.Verify(hash, password), nil
}

// StartFunc runs under the room lock once the joined room is persisted.
// Returning an error aborts the join and the stored room is reverted.
type StartFunc func(r battle.Room) error

// Join seats the caller as guest and starts the match. Host or current guest
// re-entering get the room back unchanged.
func (s *Store) Join(ctx context.Context, roomID uuid.UUID, caller battle.Player, password string, start StartFunc) (battle.Room, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return battle.Room{}, false, battle.NotFound(fmt.Sprintf("room %s not found", roomID))
	}
	if r.IsParticipant(caller.ID) {
		return r.Clone(), false, nil
	}
	if r.Status == battle.RoomStatusFinished || r.Status == battle.RoomStatusClosed {
		return battle.Room{}, false, battle.InvalidState(fmt.Sprintf("room is %s", r.Status))
	}
	if r.Guest != nil {
		return battle.Room{}, false, battle.ErrRoomFull
	}
	if r.Status != battle.RoomStatusWaiting {
		return battle.Room{}, false, battle.InvalidState(fmt.Sprintf("room is %s", r.Status))
	}
	if r.Private && (password == "" || !s.hasher.Verify(r.PasswordHash, password)) {
		return battle.Room{}, false, battle.AccessDenied("wrong room password")
	}

	now := s.opts.Now()
	next := r.Clone()
	guest := caller
	next.Guest = &guest
	next.Status = battle.RoomStatusInProgress
	next.StartedAt = &now
	next.UpdatedAt = now

	if err := s.repo.UpdateRoom(ctx, next); err != nil {
		s.logger.Error().Err(err).Str("room_id", roomID.String()).Msg("persist joined room failed")
		return battle.Room{}, false, fmt.Errorf("update room: %w", err)
	}
	if start != nil {
		if err := start(next.Clone()); err != nil {
			if rerr := s.repo.UpdateRoom(ctx, *r); rerr != nil {
				s.logger.Error().Err(rerr).Str("room_id", roomID.String()).Msg("revert joined room failed")
			}
			return battle.Room{}, false, fmt.Errorf("start match: %w", err)
		}
	}
	*r = next

	s.logger.Info().
		Str("room_id", roomID.String()).
		Str("guest_id", caller.ID.String()).
		Msg("guest joined room, match started")

	return next.Clone(), true, nil
}

// Finish marks an in-progress room finished.
func (s *Store) Finish(ctx context.Context, roomID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return battle.NotFound(fmt.Sprintf("room %s not found", roomID))
	}
	if r.Status == battle.RoomStatusFinished {
		return nil
	}
	if r.Status != battle.RoomStatusInProgress {
		return battle.InvalidState(fmt.Sprintf("cannot finish a %s room", r.Status))
	}
	now := s.opts.Now()
	r.Status = battle.RoomStatusFinished
	r.FinishedAt = &now
	r.UpdatedAt = now
	if err := s.repo.UpdateRoom(ctx, r.Clone()); err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	s.logger.Info().Str("room_id", roomID.String()).Msg("room finished")
	return nil
}

// Close removes a room from the lobby. Only the host may close, and never mid-match.
func (s *Store) Close(ctx context.Context, roomID, callerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return battle.NotFound(fmt.Sprintf("room %s not found", roomID))
	}
	if r.Host.ID != callerID {
		return battle.AccessDenied("only the host can close the room")
	}
	if r.Status != battle.RoomStatusWaiting && r.Status != battle.RoomStatusFinished {
		return battle.InvalidState(fmt.Sprintf("cannot close a %s room", r.Status))
	}
	now := s.opts.Now()
	r.Status = battle.RoomStatusClosed
	r.UpdatedAt = now
	if err := s.repo.UpdateRoom(ctx, r.Clone()); err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	s.logger.Info().Str("room_id", roomID.String()).Msg("room closed")
	return nil
}
