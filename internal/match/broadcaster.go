package match

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/loop-dev/loop-battle/pkg/http/ws"
)

// RoomBroadcaster is the hub surface events are forwarded to.
type RoomBroadcaster interface {
	BroadcastToRoom(roomID uuid.UUID, msg ws.Message) error
}

// Broadcaster listens on the Redis events channel and forwards each event to
// the local watchers of its room.
type Broadcaster struct {
	redis  *redis.Client
	hub    RoomBroadcaster
	logger zerolog.Logger
}

// NewBroadcaster creates a pub/sub powered room broadcaster.
func NewBroadcaster(client *redis.Client, hub RoomBroadcaster, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		redis:  client,
		hub:    hub,
		logger: logger.With().Str("component", "room_broadcaster").Logger(),
	}
}

// Run subscribes to the events channel and blocks until the context is cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	if b.redis == nil || b.hub == nil {
		return nil
	}

	sub := b.redis.Subscribe(ctx, EventsChannel)
	defer sub.Close()

	// Wait for the subscription so events published right after Run starts are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.forward(msg.Payload)
		}
	}
}

func (b *Broadcaster) forward(payload string) {
	var evt Event
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		b.logger.Warn().Err(err).Msg("failed to decode room event")
		return
	}

	msg := ws.Message{Type: evt.Type, Payload: evt.Payload}
	if err := b.hub.BroadcastToRoom(evt.RoomID, msg); err != nil {
		b.logger.Debug().Err(err).Str("room_id", evt.RoomID.String()).Msg("room event not delivered to every watcher")
	}
}
