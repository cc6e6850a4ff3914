package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/phbiling/isp-billing/internal/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultQueueKey is the Redis list events are pushed to
const DefaultQueueKey = "billing:events"

// RedisQueue is a FIFO event queue on a Redis list (LPUSH / BRPOP)
type RedisQueue struct {
	client      *redis.Client
	key         string
	pollTimeout time.Duration
}

// NewRedisQueue creates a queue on key
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &RedisQueue{client: client, key: key, pollTimeout: time.Second}
}

// Publish pushes events in order
func (q *RedisQueue) Publish(ctx context.Context, evts ...Event) error {
	if len(evts) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(evts))
	for _, evt := range evts {
		data, err := json.Marshal(evt)
		if err != nil {
			return errors.Wrapf(err, "marshal event %s", evt.ID)
		}
		values = append(values, data)
	}
	if err := q.client.LPush(ctx, q.key, values...).Err(); err != nil {
		return errors.Wrap(err, "push events")
	}
	return nil
}

// Len reports how many events are waiting
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Consume blocks, handing events to handle until ctx is done.
// A handler error is logged and the event dropped; delivery is at most once.
func (q *RedisQueue) Consume(ctx context.Context, handle Handler) error {
	log := logger.FromContext(ctx).With(zap.String("queue", q.key))
	for {
		if ctx.Err() != nil {
			return nil
		}

		res, err := q.client.BRPop(ctx, q.pollTimeout, q.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("event queue pop failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(q.pollTimeout):
			}
			continue
		}

		// res is [key, value]
		var evt Event
		if err := json.Unmarshal([]byte(res[1]), &evt); err != nil {
			log.Error("dropping malformed event", zap.Error(err))
			continue
		}
		if err := handle(ctx, evt); err != nil {
			log.Error("event handler failed",
				zap.String("event_id", evt.ID),
				zap.String("event_type", string(evt.Type)),
				zap.Error(err),
			)
		}
	}
}
