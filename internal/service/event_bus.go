package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/vigil-backend/internal/config"
	"github.com/stemsi/vigil-backend/internal/model"
)

// RedisEventBus publishes events to the exam's live pub/sub channel (for
// attached monitor streams) and pushes them onto the notification queue
// (drained by the event worker into the notification journal). Fan-out is
// best-effort: a Redis hiccup must never roll back a committed
// transition, so failures are logged and dropped here.
type RedisEventBus struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisEventBus creates a new RedisEventBus.
func NewRedisEventBus(rdb *redis.Client, log zerolog.Logger) *RedisEventBus {
	return &RedisEventBus{
		rdb: rdb,
		log: log.With().Str("component", "event_bus").Logger(),
	}
}

// Publish implements EventPublisher.
func (b *RedisEventBus) Publish(ctx context.Context, event model.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.log.Error().Err(err).Msg("Failed to marshal event")
		return
	}

	channel := config.CacheKey.ExamEventsChannel(event.ExamID.String())
	pipe := b.rdb.Pipeline()
	pipe.Publish(ctx, channel, payload)
	pipe.RPush(ctx, config.WorkerKey.NotificationQueue, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		b.log.Warn().Err(err).
			Str("type", string(event.Type)).
			Str("exam_id", event.ExamID.String()).
			Msg("Failed to fan out event")
	}
}
