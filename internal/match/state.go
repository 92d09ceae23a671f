package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// EventsChannel is the Redis pub/sub channel room events travel on.
const EventsChannel = "battle:events"

const defaultResultTTL = 24 * time.Hour

// ErrLockHeld is returned when another replica owns the match lock.
var ErrLockHeld = errors.New("match lock already held")

var unlockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Event is one room-scoped message fanned out to WebSocket watchers.
type Event struct {
	RoomID  uuid.UUID       `json:"roomId"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// StateManager keeps ephemeral match state in Redis: completed results,
// cross-replica locks and the event channel.
type StateManager struct {
	redis     *redis.Client
	resultTTL time.Duration
	logger    zerolog.Logger
}

// NewStateManager creates a state manager backed by Redis.
func NewStateManager(client *redis.Client, resultTTL time.Duration, logger zerolog.Logger) *StateManager {
	if resultTTL <= 0 {
		resultTTL = defaultResultTTL
	}
	return &StateManager{
		redis:     client,
		resultTTL: resultTTL,
		logger:    logger.With().Str("component", "match_state").Logger(),
	}
}

func resultKey(roomID uuid.UUID) string {
	return fmt.Sprintf("battle:result:%s", roomID)
}

// CacheResult stores a completed snapshot.
func (s *StateManager) CacheResult(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return s.redis.Set(ctx, resultKey(snap.RoomID), data, s.resultTTL).Err()
}

// CachedResult returns nil without error on a miss.
func (s *StateManager) CachedResult(ctx context.Context, roomID uuid.UUID) (*Snapshot, error) {
	data, err := s.redis.Get(ctx, resultKey(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &snap, nil
}

// Publish sends an event to every replica's broadcaster.
func (s *StateManager) Publish(ctx context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.redis.Publish(ctx, EventsChannel, data).Err()
}

// LockMatch acquires a lock for timeout resolution so only one replica
// expires a given match. The returned func releases it.
func (s *StateManager) LockMatch(ctx context.Context, roomID uuid.UUID, ttl time.Duration) (func(context.Context) error, error) {
	key := fmt.Sprintf("battle:lock:%s", roomID)
	token := uuid.NewString()

	acquired, err := s.redis.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		return nil, ErrLockHeld
	}

	unlock := func(ctx context.Context) error {
		return unlockScript.Run(ctx, s.redis, []string{key}, token).Err()
	}
	return unlock, nil
}
