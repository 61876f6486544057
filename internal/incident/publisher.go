// Package incident journals proctoring events to Redis: a durable queue the
// sink worker drains into PostgreSQL and a per-quiz channel proctors watch live.
package incident

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

const (
	writeTimeout  = 2 * time.Second
	violationsTTL = 24 * time.Hour
)

// Publisher implements session.IncidentRecorder on top of Redis. Failures are
// logged and never reach the session.
type Publisher struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(rdb *redis.Client, log zerolog.Logger) *Publisher {
	return &Publisher{
		rdb: rdb,
		log: log.With().Str("component", "incident_publisher").Logger(),
	}
}

// Record queues in for persistence and broadcasts it on the quiz channel.
func (p *Publisher) Record(in model.Incident) {
	data, err := json.Marshal(in)
	if err != nil {
		p.log.Error().Err(err).Str("kind", string(in.Kind)).Msg("Discarding unencodable incident")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	pipe := p.rdb.Pipeline()
	pipe.RPush(ctx, config.WorkerKey.PersistIncidentsQueue, data)
	if in.QuizCode != "" {
		pipe.Publish(ctx, config.CacheKey.QuizMonitorChannel(in.QuizCode), data)
	}
	if in.Kind == model.IncidentViolationConfirmed {
		pipe.Set(ctx, config.CacheKey.SessionViolationsKey(in.SessionID), in.Count, violationsTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		p.log.Error().
			Err(err).
			Str("session_id", in.SessionID).
			Str("kind", string(in.Kind)).
			Msg("Failed to journal incident")
	}
}

// Violations returns the last confirmed violation count stored for a session.
func (p *Publisher) Violations(ctx context.Context, sessionID string) (int, error) {
	n, err := p.rdb.Get(ctx, config.CacheKey.SessionViolationsKey(sessionID)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}
