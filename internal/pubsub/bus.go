package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel prefixes. The board channel is global: every assignment, status
// change, or deletion lands there so board views can refresh.
const (
	BoardChannel     = "board"
	RequestPrefix    = "request:"
	TechnicianPrefix = "tech:"
	UserPrefix       = "user:"
)

// Bus fans domain events out to Redis pub/sub, to Redis streams (for
// replay with sequence numbers), and to the WebSocket hub.
type Bus struct {
	rdb     *redis.Client
	log     *zap.Logger
	ctx     context.Context
	wsHub   WSHub
	streams *Streams
}

type WSHub interface {
	Publish(channel string, message map[string]interface{})
}

func New(rdb *redis.Client, log *zap.Logger) *Bus {
	return &Bus{
		rdb:     rdb,
		log:     log,
		ctx:     context.Background(),
		streams: NewStreams(rdb, log),
	}
}

// SetWSHub sets the WebSocket hub for event broadcasting
func (b *Bus) SetWSHub(hub WSHub) {
	b.wsHub = hub
}

// GetStreams returns the streams provider
func (b *Bus) GetStreams() *Streams {
	return b.streams
}

// PublishRequest publishes an event to a single request's channel.
func (b *Bus) PublishRequest(requestID string, event map[string]interface{}) error {
	return b.publish(RequestPrefix+requestID, event)
}

// PublishTechnician publishes an event to a technician's channel.
func (b *Bus) PublishTechnician(technicianID string, event map[string]interface{}) error {
	return b.publish(TechnicianPrefix+technicianID, event)
}

// PublishUser publishes an event to a user's channel.
func (b *Bus) PublishUser(userID string, event map[string]interface{}) error {
	return b.publish(UserPrefix+userID, event)
}

// PublishBoard publishes an event to the shared scheduling-board channel.
func (b *Bus) PublishBoard(event map[string]interface{}) error {
	return b.publish(BoardChannel, event)
}

func (b *Bus) publish(channel string, event map[string]interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := b.rdb.Publish(b.ctx, channel, data).Err(); err != nil {
		b.log.Error("failed to publish event", zap.String("channel", channel), zap.Error(err))
		return err
	}

	// Streams give subscribers replayable sequence numbers; a stream
	// failure degrades replay but never blocks the live event.
	seq, err := b.streams.PublishEvent(channel, event)
	if err != nil {
		b.log.Warn("failed to publish to stream", zap.String("channel", channel), zap.Error(err))
	}

	if b.wsHub != nil {
		withSeq := make(map[string]interface{}, len(event)+1)
		for k, v := range event {
			withSeq[k] = v
		}
		withSeq["seq"] = seq
		b.wsHub.Publish(channel, withSeq)
	}

	b.log.Debug("published event", zap.String("channel", channel), zap.Int64("seq", seq))
	return nil
}
