package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/vigil-backend/internal/config"
	"github.com/stemsi/vigil-backend/internal/model"
)

const (
	EventBatchSize    = 50
	EventBatchTimeout = 2 * time.Second
	EventPollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// EventWorker drains the notification queue into the notification_log
// table, which is the hand-off point for the downstream notification
// collaborator. Batches for throughput, falls back to row-by-row on a
// failed batch, and requeues what it could not persist.
type EventWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewEventWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *EventWorker {
	return &EventWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "event_worker").Logger(),
	}
}

func (w *EventWorker) Start(ctx context.Context) {
	w.log.Info().Msg("EventWorker started")

	batch := make([]*model.Event, 0, EventBatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= EventBatchSize || time.Since(lastFlush) >= EventBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, EventPollTimeout, config.WorkerKey.NotificationQueue).Result()
			if err != nil {
				if err == redis.Nil {
					continue // Queue empty, loop back to check flush timer
				}
				if ctx.Err() != nil {
					return
				}
				w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
				time.Sleep(3 * time.Second)
				continue
			}

			if len(item) < 2 {
				continue
			}

			var event model.Event
			if err := json.Unmarshal([]byte(item[1]), &event); err != nil {
				// Malformed JSON cannot be retried. Log and discard.
				w.log.Error().Err(err).Str("data", item[1]).Msg("Discarding malformed event")
				continue
			}

			batch = append(batch, &event)
		}
	}
}

// flushSafe attempts bulk insert, then row-by-row fallback, then requeue.
func (w *EventWorker) flushSafe(ctx context.Context, batch []*model.Event) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func (w *EventWorker) bulkInsert(ctx context.Context, batch []*model.Event) error {
	rows := make([][]interface{}, 0, len(batch))
	for _, e := range batch {
		rows = append(rows, []interface{}{
			string(e.Type), e.ExamID, e.AttendanceID, e.StudentID,
			e.StudentName, e.RoomNumber, e.Message, e.OccurredAt,
		})
	}

	_, err := w.pool.CopyFrom(
		ctx,
		pgx.Identifier{"notification_log"},
		[]string{"event_type", "exam_id", "attendance_id", "student_id", "student_name", "room_number", "message", "occurred_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func (w *EventWorker) fallbackInsert(ctx context.Context, batch []*model.Event) {
	requeueList := make([]*model.Event, 0)

	for _, e := range batch {
		_, err := w.pool.Exec(ctx,
			`INSERT INTO notification_log (event_type, exam_id, attendance_id, student_id, student_name, room_number, message, occurred_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			string(e.Type), e.ExamID, e.AttendanceID, e.StudentID,
			e.StudentName, e.RoomNumber, e.Message, e.OccurredAt,
		)
		if err != nil {
			w.log.Error().Err(err).Str("attendance_id", e.AttendanceID.String()).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, e)
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *EventWorker) requeue(ctx context.Context, items []*model.Event) {
	pipe := w.rdb.Pipeline()
	for _, e := range items {
		data, _ := json.Marshal(e)
		pipe.RPush(ctx, config.WorkerKey.NotificationQueue, data)
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue events to Redis. Data loss occurred.")
	} else {
		w.log.Info().Int("count", len(items)).Msg("Requeued failed events back to Redis")
		// Avoid thrashing while the DB is down hard.
		time.Sleep(2 * time.Second)
	}
}
