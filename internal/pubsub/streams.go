package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// streamMaxLen bounds the per-channel replay buffer.
const streamMaxLen = 1024

// StreamEvent is an event read back from a channel's replay stream.
type StreamEvent struct {
	Channel   string
	Sequence  int64
	Event     map[string]interface{}
	Timestamp time.Time
}

// Streams stores every published event in a capped Redis stream per
// channel, tagged with a monotonic per-channel sequence so reconnecting
// board clients can resume without missing assignments.
type Streams struct {
	rdb *redis.Client
	log *zap.Logger
	ctx context.Context
}

func NewStreams(rdb *redis.Client, log *zap.Logger) *Streams {
	return &Streams{rdb: rdb, log: log, ctx: context.Background()}
}

// PublishEvent appends the event to the channel's stream and returns its
// sequence number.
func (s *Streams) PublishEvent(channel string, event map[string]interface{}) (int64, error) {
	seq, err := s.rdb.Incr(s.ctx, "seq:"+channel).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate sequence: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	err = s.rdb.XAdd(s.ctx, &redis.XAddArgs{
		Stream: "events:" + channel,
		MaxLen: streamMaxLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"seq":  seq,
			"data": string(data),
			"at":   time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		return 0, fmt.Errorf("failed to append to stream: %w", err)
	}

	return seq, nil
}

// GetLastSequence returns the last sequence a connection acknowledged on a
// channel, or 0 if it never did.
func (s *Streams) GetLastSequence(channel, connectionID string) (int64, error) {
	val, err := s.rdb.Get(s.ctx, cursorKey(channel, connectionID)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get cursor: %w", err)
	}
	seq, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse cursor: %w", err)
	}
	return seq, nil
}

// AcknowledgeSequence records how far a connection has consumed a channel.
func (s *Streams) AcknowledgeSequence(channel, connectionID string, sequence int64) error {
	if err := s.rdb.Set(s.ctx, cursorKey(channel, connectionID), sequence, 24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to store cursor: %w", err)
	}
	return nil
}

// ReplayEvents returns up to limit events on the channel with a sequence
// greater than sinceSeq, oldest first.
func (s *Streams) ReplayEvents(channel string, sinceSeq int64, limit int64) ([]StreamEvent, error) {
	msgs, err := s.rdb.XRange(s.ctx, "events:"+channel, "-", "+").Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}

	events := make([]StreamEvent, 0)
	for _, msg := range msgs {
		seqStr, _ := msg.Values["seq"].(string)
		seq, err := strconv.ParseInt(seqStr, 10, 64)
		if err != nil || seq <= sinceSeq {
			continue
		}

		data, _ := msg.Values["data"].(string)
		var event map[string]interface{}
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			s.log.Warn("skipping malformed stream event",
				zap.String("channel", channel), zap.Error(err))
			continue
		}

		var at time.Time
		if atStr, ok := msg.Values["at"].(string); ok {
			at, _ = time.Parse(time.RFC3339, atStr)
		}

		events = append(events, StreamEvent{
			Channel:   channel,
			Sequence:  seq,
			Event:     event,
			Timestamp: at,
		})
		if limit > 0 && int64(len(events)) >= limit {
			break
		}
	}
	return events, nil
}

func cursorKey(channel, connectionID string) string {
	return "cursor:" + channel + ":" + connectionID
}
