package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/loop-dev/loop-battle/internal/battle"
	"github.com/loop-dev/loop-battle/internal/match/scoring"
	"github.com/loop-dev/loop-battle/internal/metrics"
	"github.com/loop-dev/loop-battle/internal/room"
	"github.com/loop-dev/loop-battle/pkg/http/ws"
)

const (
	defaultCodeTestDuration = 2400 * time.Second
	defaultMiniQuizDuration = 600 * time.Second
	defaultGrace            = 10 * time.Second
	defaultRetention        = 30 * time.Minute
	expireTimeout           = 15 * time.Second
	lockRetryInterval       = 2 * time.Second
)

// ServiceOptions configures the match service.
type ServiceOptions struct {
	CodeTestDuration time.Duration
	MiniQuizDuration time.Duration
	// Grace is how long after the deadline late submissions are still accepted. Zero disables it.
	Grace time.Duration
	// CodeTestTimeoutPolicy decides CodeTest matches where nobody submitted.
	CodeTestTimeoutPolicy TimeoutPolicy
	// ResultRetention is how long a completed match stays in memory before
	// polls are served from Redis and Postgres.
	ResultRetention time.Duration
	Scoring         scoring.Config
	Clock           Clock
}

func (o ServiceOptions) withDefaults() ServiceOptions {
	if o.CodeTestDuration <= 0 {
		o.CodeTestDuration = defaultCodeTestDuration
	}
	if o.MiniQuizDuration <= 0 {
		o.MiniQuizDuration = defaultMiniQuizDuration
	}
	if o.Grace < 0 {
		o.Grace = defaultGrace
	}
	if o.CodeTestTimeoutPolicy != TimeoutDoubleLoss {
		o.CodeTestTimeoutPolicy = TimeoutDraw
	}
	if o.ResultRetention <= 0 {
		o.ResultRetention = defaultRetention
	}
	if o.Clock == nil {
		o.Clock = realClock{}
	}
	return o
}

// Service orchestrates rooms, match sessions and result reconciliation.
type Service struct {
	rooms    *room.Store
	problems ProblemSource
	store    Store
	state    *StateManager
	engine   *scoring.Engine
	metrics  *metrics.Collectors
	clock    Clock
	opts     ServiceOptions

	mu      sync.RWMutex
	matches map[uuid.UUID]*Match

	logger zerolog.Logger
}

// NewService creates a match service with all dependencies.
func NewService(
	rooms *room.Store,
	problems ProblemSource,
	store Store,
	state *StateManager,
	collectors *metrics.Collectors,
	opts ServiceOptions,
	logger zerolog.Logger,
) *Service {
	opts = opts.withDefaults()
	return &Service{
		rooms:    rooms,
		problems: problems,
		store:    store,
		state:    state,
		engine:   scoring.NewEngine(opts.Scoring),
		metrics:  collectors,
		clock:    opts.Clock,
		opts:     opts,
		matches:  make(map[uuid.UUID]*Match),
		logger:   logger.With().Str("component", "match_service").Logger(),
	}
}

// Duration returns the configured match length for a mode.
func (s *Service) Duration(mode battle.Mode) time.Duration {
	if mode == battle.ModeCodeTest {
		return s.opts.CodeTestDuration
	}
	return s.opts.MiniQuizDuration
}

// CreateRoom opens a room hosted by the caller.
func (s *Service) CreateRoom(ctx context.Context, req room.CreateRequest) (battle.Room, error) {
	r, err := s.rooms.Create(ctx, req)
	if err != nil {
		return battle.Room{}, err
	}
	visibility := "public"
	if r.Private {
		visibility = "private"
	}
	s.metrics.RoomsCreated.WithLabelValues(string(r.Mode), visibility).Inc()
	return r, nil
}

// ListRooms returns the lobby view for the filter.
func (s *Service) ListRooms(f room.Filter) []battle.Room {
	return slices.Collect(s.rooms.List(f))
}

// VerifyPassword checks a private room's password.
func (s *Service) VerifyPassword(roomID uuid.UUID, password string) (bool, error) {
	return s.rooms.VerifyPassword(roomID, password)
}

// Close removes a room from the lobby. Only the host may close it.
func (s *Service) Close(ctx context.Context, roomID, callerID uuid.UUID) error {
	if err := s.rooms.Close(ctx, roomID, callerID); err != nil {
		return err
	}
	if r, err := s.rooms.Get(roomID); err == nil {
		s.publishRoomUpdate(ctx, r)
	}
	return nil
}

// RoomDetail is a room plus the caller's match context.
type RoomDetail struct {
	Room            battle.Room
	DurationSeconds int
	Deadline        *time.Time
	// Problems and Progress are only filled in for participants of a started room.
	Problems []battle.Problem
	Progress *Progress
}

// GetRoom returns room detail for the caller.
func (s *Service) GetRoom(ctx context.Context, roomID, callerID uuid.UUID) (RoomDetail, error) {
	r, err := s.rooms.Get(roomID)
	if err != nil {
		return RoomDetail{}, err
	}
	detail := RoomDetail{
		Room:            r,
		DurationSeconds: int(s.Duration(r.Mode) / time.Second),
	}
	if !r.IsParticipant(callerID) {
		return detail, nil
	}

	m, ok := s.lookup(roomID)
	if !ok {
		return detail, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	deadline := m.session.Deadline()
	detail.Deadline = &deadline
	detail.Problems = m.session.Problems()
	progress, err := m.session.Progress(s.clock.Now(), callerID)
	if err != nil {
		return RoomDetail{}, err
	}
	detail.Progress = &progress
	return detail, nil
}

// SessionDescriptor is what a player needs to start playing.
type SessionDescriptor struct {
	Room            battle.Room
	DurationSeconds int
	StartedAt       *time.Time
	Deadline        *time.Time
	Problems        []battle.Problem
}

// Join enters a room. A guest joining a waiting room starts the match;
// participants re-entering get the current descriptor back.
func (s *Service) Join(ctx context.Context, roomID uuid.UUID, caller battle.Player, password string) (SessionDescriptor, error) {
	r, started, err := s.rooms.Join(ctx, roomID, caller, password, func(r battle.Room) error {
		return s.start(ctx, r)
	})
	if err != nil {
		return SessionDescriptor{}, err
	}

	desc := SessionDescriptor{
		Room:            r,
		DurationSeconds: int(s.Duration(r.Mode) / time.Second),
	}
	if m, ok := s.lookup(roomID); ok {
		m.mu.Lock()
		startedAt, deadline := m.session.StartedAt(), m.session.Deadline()
		desc.StartedAt = &startedAt
		desc.Deadline = &deadline
		desc.Problems = m.session.Problems()
		m.mu.Unlock()
	}

	if started && desc.StartedAt != nil {
		s.publishRoomUpdate(ctx, r)
		s.publish(ctx, r.ID, ws.TypeMatchStarted, ws.MatchStartedPayload{
			RoomID:          r.ID.String(),
			Mode:            string(r.Mode),
			StartedAt:       desc.StartedAt.Format(time.RFC3339),
			Deadline:        desc.Deadline.Format(time.RFC3339),
			DurationSeconds: desc.DurationSeconds,
			Players:         wsPlayers(r),
		})
	}
	return desc, nil
}

// start runs under the room store lock while the guest is being bound.
func (s *Service) start(ctx context.Context, r battle.Room) error {
	problems, err := s.problems.GetByIDs(ctx, r.ProblemIDs)
	if err != nil {
		return fmt.Errorf("load problems: %w", err)
	}

	startedAt := s.clock.Now()
	if r.StartedAt != nil {
		startedAt = *r.StartedAt
	}
	duration := s.Duration(r.Mode)
	players := []uuid.UUID{r.Host.ID, r.Guest.ID}

	rec := MatchRecord{
		RoomID:     r.ID,
		Mode:       r.Mode,
		StartedAt:  startedAt,
		Duration:   duration,
		ProblemIDs: slices.Clone(r.ProblemIDs),
	}
	for _, id := range players {
		rec.Players = append(rec.Players, PlayerRecord{PlayerID: id})
	}
	if err := s.store.CreateMatch(ctx, rec); err != nil {
		return fmt.Errorf("create match: %w", err)
	}

	m := &Match{
		room:       r,
		session:    NewSession(r.Mode, problems, players, startedAt, duration, s.engine),
		reconciler: NewReconciler(r.ID, r.Host.ID, r.Guest.ID),
	}
	s.register(m)

	s.metrics.MatchesStarted.WithLabelValues(string(r.Mode)).Inc()
	s.metrics.ActiveMatches.Inc()
	s.logger.Info().
		Str("room_id", r.ID.String()).
		Str("mode", string(r.Mode)).
		Time("deadline", m.session.Deadline()).
		Msg("match started")
	return nil
}

func (s *Service) register(m *Match) {
	s.mu.Lock()
	s.matches[m.roomID()] = m
	s.mu.Unlock()

	m.mu.Lock()
	s.armLocked(m)
	m.mu.Unlock()
}

// armLocked schedules the timeout watcher at deadline + grace.
func (s *Service) armLocked(m *Match) {
	m.stopTimer()
	roomID := m.roomID()
	wait := m.session.Deadline().Add(s.opts.Grace).Sub(s.clock.Now())
	m.timer = s.clock.AfterFunc(wait, func() { s.expire(roomID) })
}

func (s *Service) lookup(roomID uuid.UUID) (*Match, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[roomID]
	return m, ok
}

// participantMatch finds the live match for a room and checks the caller plays in it.
func (s *Service) participantMatch(roomID, playerID uuid.UUID) (*Match, error) {
	m, ok := s.lookup(roomID)
	if !ok {
		r, err := s.rooms.Get(roomID)
		if err != nil {
			return nil, err
		}
		if !r.IsParticipant(playerID) {
			return nil, battle.AccessDenied("not a participant of this room")
		}
		if r.Status == battle.RoomStatusWaiting {
			return nil, battle.InvalidState("match has not started")
		}
		return nil, battle.InvalidState(fmt.Sprintf("room is %s", r.Status))
	}
	if !m.room.IsParticipant(playerID) {
		return nil, battle.AccessDenied("not a participant of this room")
	}
	return m, nil
}

// RecordAnswer stores the player's answer for one problem.
func (s *Service) RecordAnswer(ctx context.Context, roomID, playerID uuid.UUID, problemID int64, answer battle.Answer) error {
	m, err := s.participantMatch(roomID, playerID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.session.RecordAnswer(s.clock.Now(), playerID, problemID, answer); err != nil {
		return err
	}
	if err := s.store.SaveAnswer(ctx, roomID, playerID, problemID, answer); err != nil {
		s.logger.Error().Err(err).Str("room_id", roomID.String()).Str("player_id", playerID.String()).Msg("persist answer failed")
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

// Progress returns the caller's own session view.
func (s *Service) Progress(roomID, playerID uuid.UUID) (Progress, error) {
	m, err := s.participantMatch(roomID, playerID)
	if err != nil {
		return Progress{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Progress(s.clock.Now(), playerID)
}

// FinalizeResult is the server-scored submission plus the reconciliation view.
type FinalizeResult struct {
	Submission Submission
	Response   Response
}

// Finalize seals the player's session, scores it server side and hands the
// result to the reconciler. passRatio is only used for CodeTest rooms.
func (s *Service) Finalize(ctx context.Context, roomID, playerID uuid.UUID, passRatio *float64) (FinalizeResult, error) {
	m, err := s.participantMatch(roomID, playerID)
	if err != nil {
		return FinalizeResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := s.clock.Now()
	if m.reconciler.Phase() == PhaseComplete {
		return FinalizeResult{}, battle.ErrAlreadyComplete
	}
	if now.After(m.session.Deadline().Add(s.opts.Grace)) {
		return FinalizeResult{}, battle.InvalidState("submission window has closed")
	}

	sub, err := m.session.Finalize(now, playerID, FinalizeRequest{Trigger: TriggerUser, PassRatio: passRatio})
	if err != nil {
		return FinalizeResult{}, err
	}
	resp, err := s.submitLocked(ctx, m, now, playerID, sub.Result(), &sub)
	if err != nil {
		return FinalizeResult{}, err
	}
	return FinalizeResult{Submission: sub, Response: resp}, nil
}

// SubmitResult accepts a client-computed result. The player's session is
// sealed with the reported percentages if it was still open; an already sealed
// submission is left as is and only the pending result is replaced.
func (s *Service) SubmitResult(ctx context.Context, roomID, playerID uuid.UUID, res Result) (Response, error) {
	m, err := s.participantMatch(roomID, playerID)
	if err != nil {
		return Response{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := s.clock.Now()
	if m.reconciler.Phase() == PhaseComplete {
		return Response{}, battle.ErrAlreadyComplete
	}
	if err := res.Validate(); err != nil {
		return Response{}, err
	}
	if now.After(m.session.Deadline().Add(s.opts.Grace)) {
		return Response{}, battle.InvalidState("submission window has closed")
	}

	if _, sealed := m.session.Submission(playerID); sealed {
		return s.submitLocked(ctx, m, now, playerID, res, nil)
	}
	sub, err := m.session.Finalize(now, playerID, FinalizeRequest{Trigger: TriggerReported, Reported: &res})
	if err != nil {
		return Response{}, err
	}
	return s.submitLocked(ctx, m, now, playerID, sub.Result(), &sub)
}

// submitLocked hands res to the reconciler. sealed is set only when this call
// sealed the player's submission; it is persisted and counted exactly once.
func (s *Service) submitLocked(ctx context.Context, m *Match, now time.Time, playerID uuid.UUID, res Result, sealed *Submission) (Response, error) {
	roomID := m.roomID()
	log := s.logger.With().Str("room_id", roomID.String()).Str("player_id", playerID.String()).Logger()

	resp, err := m.reconciler.Submit(now, playerID, res)
	if err != nil {
		return Response{}, err
	}

	trigger := TriggerReported
	var persistErr error
	if sealed != nil {
		trigger = sealed.Trigger
		s.metrics.Submissions.WithLabelValues(string(trigger)).Inc()
		if err := s.store.SaveSubmission(ctx, roomID, playerID, *sealed); err != nil {
			log.Error().Err(err).Msg("persist submission failed")
			persistErr = errors.Join(persistErr, fmt.Errorf("save submission: %w", err))
		}
	}
	if err := s.store.SaveResult(ctx, roomID, playerID, res); err != nil {
		log.Error().Err(err).Msg("persist result failed")
		persistErr = errors.Join(persistErr, fmt.Errorf("save result: %w", err))
	}

	log.Info().
		Str("trigger", string(trigger)).
		Int("accuracy_percent", res.AccuracyPercent).
		Int("remaining_time_percent", res.RemainingTimePercent).
		Bool("complete", resp.IsComplete).
		Msg("result submitted")

	s.publish(ctx, roomID, ws.TypeOpponentFinalized, ws.OpponentFinalizedPayload{
		RoomID:   roomID.String(),
		PlayerID: playerID.String(),
		Trigger:  string(trigger),
	})
	if resp.IsComplete {
		s.completeLocked(ctx, m)
	}
	if persistErr != nil {
		return Response{}, persistErr
	}
	return resp, nil
}

// GetResult is a read-only poll. Completed matches always return their stored outcome.
func (s *Service) GetResult(ctx context.Context, roomID, playerID uuid.UUID) (Response, error) {
	if m, ok := s.lookup(roomID); ok {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.reconciler.Get(playerID)
	}

	snap, err := s.state.CachedResult(ctx, roomID)
	if err != nil {
		s.logger.Warn().Err(err).Str("room_id", roomID.String()).Msg("result cache read failed")
	}
	if snap != nil {
		return snap.View(playerID)
	}

	stored, err := s.store.LoadResult(ctx, roomID)
	if err != nil {
		if battle.KindOf(err) == battle.KindNotFound {
			if _, roomErr := s.rooms.Get(roomID); roomErr != nil {
				return Response{}, roomErr
			}
			return Response{}, battle.InvalidState("match has no result yet")
		}
		return Response{}, fmt.Errorf("load result: %w", err)
	}
	if err := s.state.CacheResult(ctx, stored); err != nil {
		s.logger.Warn().Err(err).Str("room_id", roomID.String()).Msg("result cache write failed")
	}
	return stored.View(playerID)
}

// expire is the timeout watcher. Players without a result are force-finalized
// and the match is decided by forfeit or the timeout policy.
func (s *Service) expire(roomID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), expireTimeout)
	defer cancel()

	m, ok := s.lookup(roomID)
	if !ok {
		return
	}
	log := s.logger.With().Str("room_id", roomID.String()).Logger()

	unlock, err := s.state.LockMatch(ctx, roomID, expireTimeout)
	switch {
	case errors.Is(err, ErrLockHeld):
		log.Debug().Dur("retry_in", lockRetryInterval).Msg("match lock held, retrying expiry")
		m.mu.Lock()
		if m.reconciler.Phase() != PhaseComplete {
			m.stopTimer()
			m.timer = s.clock.AfterFunc(lockRetryInterval, func() { s.expire(roomID) })
		}
		m.mu.Unlock()
		return
	case err != nil:
		// Redis being down must not leave the match open forever.
		log.Warn().Err(err).Msg("match lock unavailable, expiring locally")
	default:
		defer func() {
			if err := unlock(ctx); err != nil {
				log.Warn().Err(err).Msg("release match lock failed")
			}
		}()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s.expireLocked(ctx, m)
}

func (s *Service) expireLocked(ctx context.Context, m *Match) {
	if m.reconciler.Phase() == PhaseComplete {
		return
	}
	now := s.clock.Now()
	roomID := m.roomID()
	mode := m.session.Mode()

	forced := make(map[uuid.UUID]Result, 2)
	var forcedIDs []string
	for _, p := range m.room.Players() {
		if m.reconciler.Responded(p.ID) {
			continue
		}
		sub, ok := m.session.Submission(p.ID)
		if !ok {
			var err error
			sub, err = m.session.Finalize(now, p.ID, FinalizeRequest{Trigger: TriggerTimeout})
			if err != nil {
				s.logger.Error().Err(err).Str("room_id", roomID.String()).Str("player_id", p.ID.String()).Msg("force finalize failed")
				continue
			}
			if err := s.store.SaveSubmission(ctx, roomID, p.ID, sub); err != nil {
				s.logger.Error().Err(err).Str("room_id", roomID.String()).Msg("persist forced submission failed")
			}
			s.metrics.ForcedFinalizations.WithLabelValues(string(mode)).Inc()
		}
		s.logger.Info().
			Str("room_id", roomID.String()).
			Str("player_id", p.ID.String()).
			Int("accuracy_percent", sub.AccuracyPercent).
			Msg("player timed out, submission finalized")
		forced[p.ID] = sub.Result()
		forcedIDs = append(forcedIDs, p.ID.String())
	}

	var err error
	switch len(forced) {
	case 1:
		for id := range forced {
			err = m.reconciler.Forfeit(now, id)
		}
	case 2:
		policy := TimeoutCompare
		if mode == battle.ModeCodeTest {
			policy = s.opts.CodeTestTimeoutPolicy
		}
		err = m.reconciler.ResolveTimeout(now, policy, forced)
	default:
		err = fmt.Errorf("unexpected non-responder count %d", len(forced))
	}
	if err != nil {
		s.logger.Error().Err(err).Str("room_id", roomID.String()).Msg("timeout resolution failed")
		return
	}

	s.publish(ctx, roomID, ws.TypeMatchTimeout, ws.MatchTimeoutPayload{RoomID: roomID.String(), Forced: forcedIDs})
	s.completeLocked(ctx, m)
}

// completeLocked runs once per match after the reconciler reaches Complete.
// Side-effect failures are logged; the in-memory outcome stays authoritative.
func (s *Service) completeLocked(ctx context.Context, m *Match) {
	if m.completed {
		return
	}
	m.completed = true
	m.stopTimer()
	// A client hanging up must not abort the outcome writes.
	ctx = context.WithoutCancel(ctx)

	roomID := m.roomID()
	snap := m.reconciler.Snapshot()
	log := s.logger.With().Str("room_id", roomID.String()).Str("resolution", string(snap.Resolution)).Logger()

	if err := s.rooms.Finish(ctx, roomID); err != nil {
		log.Error().Err(err).Msg("finish room failed")
	}
	if err := s.store.CompleteMatch(ctx, snap); err != nil {
		log.Error().Err(err).Msg("persist match outcome failed")
	}
	if err := s.state.CacheResult(ctx, snap); err != nil {
		log.Warn().Err(err).Msg("cache match outcome failed")
	}

	results := make([]ws.MatchResult, 0, 2)
	for _, id := range snap.Players {
		res := snap.Results[id]
		results = append(results, ws.MatchResult{
			UserID:               id.String(),
			Outcome:              string(snap.Outcomes[id]),
			AccuracyPercent:      res.AccuracyPercent,
			RemainingTimePercent: res.RemainingTimePercent,
			TotalScore:           scoring.TotalScore(res.AccuracyPercent, res.RemainingTimePercent),
		})
	}
	s.publish(ctx, roomID, ws.TypeMatchComplete, ws.MatchCompletePayload{
		RoomID:     roomID.String(),
		Resolution: string(snap.Resolution),
		Results:    results,
	})

	s.metrics.MatchesCompleted.WithLabelValues(string(m.session.Mode()), string(snap.Resolution)).Inc()
	s.metrics.ActiveMatches.Dec()
	log.Info().Msg("match complete")

	m.timer = s.clock.AfterFunc(s.opts.ResultRetention, func() { s.evict(roomID) })
}

func (s *Service) evict(roomID uuid.UUID) {
	s.mu.Lock()
	delete(s.matches, roomID)
	s.mu.Unlock()
}

// Recover rebuilds in-progress matches after a restart and re-arms their
// watchers. Matches already past deadline + grace resolve immediately.
func (s *Service) Recover(ctx context.Context) error {
	records, err := s.store.ListActiveMatches(ctx)
	if err != nil {
		return fmt.Errorf("list active matches: %w", err)
	}

	recovered := 0
	for _, rec := range records {
		log := s.logger.With().Str("room_id", rec.RoomID.String()).Logger()

		r, err := s.rooms.Get(rec.RoomID)
		if err != nil {
			log.Warn().Err(err).Msg("skip match without room")
			continue
		}
		if r.Guest == nil {
			log.Warn().Msg("skip match for room without guest")
			continue
		}
		problems, err := s.problems.GetByIDs(ctx, rec.ProblemIDs)
		if err != nil {
			return fmt.Errorf("load problems for %s: %w", rec.RoomID, err)
		}

		m := &Match{
			room:       r,
			session:    NewSession(rec.Mode, problems, []uuid.UUID{r.Host.ID, r.Guest.ID}, rec.StartedAt, rec.Duration, s.engine),
			reconciler: NewReconciler(r.ID, r.Host.ID, r.Guest.ID),
		}
		now := s.clock.Now()
		for _, p := range rec.Players {
			m.session.restore(p.PlayerID, p.Answers, p.Submission)
			switch {
			case p.Result != nil:
				m.reconciler.restoreResult(now, p.PlayerID, *p.Result)
			case p.Submission != nil && p.Submission.Trigger != TriggerTimeout:
				// Crashed between sealing the submission and recording its result.
				m.reconciler.restoreResult(now, p.PlayerID, p.Submission.Result())
			}
		}

		s.mu.Lock()
		s.matches[r.ID] = m
		s.mu.Unlock()
		s.metrics.ActiveMatches.Inc()

		m.mu.Lock()
		switch {
		case m.reconciler.Phase() == PhaseComplete:
			s.completeLocked(ctx, m)
		case !now.Before(m.session.Deadline().Add(s.opts.Grace)):
			s.expireLocked(ctx, m)
		default:
			s.armLocked(m)
		}
		m.mu.Unlock()
		recovered++
	}

	s.logger.Info().Int("matches", recovered).Msg("matches recovered")
	return nil
}

// Shutdown stops every pending watcher. Persisted state lets Recover pick them up.
func (s *Service) Shutdown() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.matches {
		m.mu.Lock()
		m.stopTimer()
		m.mu.Unlock()
	}
}

func (s *Service) publishRoomUpdate(ctx context.Context, r battle.Room) {
	s.publish(ctx, r.ID, ws.TypeRoomUpdate, ws.RoomUpdatePayload{
		RoomID:  r.ID.String(),
		Status:  string(r.Status),
		Players: wsPlayers(r),
	})
}

func (s *Service) publish(ctx context.Context, roomID uuid.UUID, typ string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn().Err(err).Str("type", typ).Msg("marshal event payload failed")
		return
	}
	if err := s.state.Publish(ctx, Event{RoomID: roomID, Type: typ, Payload: raw}); err != nil {
		s.logger.Warn().Err(err).Str("room_id", roomID.String()).Str("type", typ).Msg("publish event failed")
	}
}

func wsPlayers(r battle.Room) []ws.Player {
	players := r.Players()
	out := make([]ws.Player, 0, len(players))
	for _, p := range players {
		out = append(out, ws.Player{UserID: p.ID.String(), Nickname: p.Nickname, Grade: string(p.Grade)})
	}
	return out
}
