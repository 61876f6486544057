package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

var incidentColumns = []string{
	"id", "session_id", "quiz_code", "kind", "signal", "violation_count", "trigger", "recorded_at",
}

// IncidentStore is the part of *pgxpool.Pool the worker writes through.
type IncidentStore interface {
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// IncidentWorker drains the incident queue into the proctor_incidents table.
type IncidentWorker struct {
	store IncidentStore
	rdb   *redis.Client
	log   zerolog.Logger

	batchSize      int
	batchTimeout   time.Duration
	requeueBackoff time.Duration
}

func NewIncidentWorker(store IncidentStore, rdb *redis.Client, log zerolog.Logger) *IncidentWorker {
	return &IncidentWorker{
		store:          store,
		rdb:            rdb,
		log:            log.With().Str("component", "incident_worker").Logger(),
		batchSize:      BatchSize,
		batchTimeout:   BatchTimeout,
		requeueBackoff: 2 * time.Second,
	}
}

// Start blocks until ctx is cancelled, then flushes what is buffered.
func (w *IncidentWorker) Start(ctx context.Context) {
	w.log.Info().Msg("IncidentWorker started")

	buffer := make([]*model.Incident, 0, w.batchSize)
	lastFlushTime := time.Now()

	for {
		if len(buffer) > 0 {
			if len(buffer) >= w.batchSize || time.Since(lastFlushTime) >= w.batchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0]
				lastFlushTime = time.Now()
			}
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		// Returns immediately if data exists.
		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistIncidentsQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				w.shutdown(buffer)
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			sleepCtx(ctx, 3*time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var in model.Incident
		if err := json.Unmarshal([]byte(result[1]), &in); err != nil {
			// Malformed JSON cannot be retried.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed incident")
			continue
		}
		buffer = append(buffer, &in)
	}
}

// flushSafe attempts bulk insert, then fallback insert, then requeue.
func (w *IncidentWorker) flushSafe(ctx context.Context, batch []*model.Incident) {
	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
		return
	}
	w.log.Debug().Int("count", len(batch)).Msg("Incidents persisted")
}

func (w *IncidentWorker) bulkInsert(ctx context.Context, batch []*model.Incident) error {
	rows := make([][]any, 0, len(batch))
	for _, in := range batch {
		rows = append(rows, incidentRow(in))
	}

	_, err := w.store.CopyFrom(ctx, pgx.Identifier{"proctor_incidents"}, incidentColumns, pgx.CopyFromRows(rows))
	return err
}

func (w *IncidentWorker) fallbackInsert(ctx context.Context, batch []*model.Incident) {
	requeueList := make([]*model.Incident, 0)

	for _, in := range batch {
		_, err := w.store.Exec(ctx,
			`INSERT INTO proctor_incidents (`+strings.Join(incidentColumns, ", ")+`)
             VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
             ON CONFLICT (id) DO NOTHING`,
			incidentRow(in)...,
		)
		if err == nil {
			continue
		}
		if isDataError(err) {
			w.log.Error().Err(err).Str("incident_id", in.ID.String()).Msg("Dropping incident rejected by the database")
			continue
		}
		w.log.Error().Err(err).Str("session_id", in.SessionID).Msg("Insert failed, requeueing")
		requeueList = append(requeueList, in)
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *IncidentWorker) requeue(ctx context.Context, items []*model.Incident) {
	// Shutdown flush runs on a context that may already be short; requeue on a
	// fresh one so items are not lost to an expired deadline.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}

	pipe := w.rdb.Pipeline()
	for _, in := range items {
		data, _ := json.Marshal(in)
		pipe.RPush(ctx, config.WorkerKey.PersistIncidentsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue incidents to Redis. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed incidents back to Redis")
	// Avoid thrashing while the DB is down.
	sleepCtx(ctx, w.requeueBackoff)
}

func (w *IncidentWorker) shutdown(buffer []*model.Incident) {
	w.log.Info().Int("buffered", len(buffer)).Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}

func incidentRow(in *model.Incident) []any {
	return []any{
		in.ID,
		in.SessionID,
		in.QuizCode,
		string(in.Kind),
		nullable(string(in.Signal)),
		in.Count,
		nullable(string(in.Trigger)),
		in.RecordedAt,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// isDataError reports whether Postgres rejected the row itself (data
// exception or integrity violation), so retrying cannot help.
func isDataError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return strings.HasPrefix(pgErr.Code, "22") || strings.HasPrefix(pgErr.Code, "23")
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
