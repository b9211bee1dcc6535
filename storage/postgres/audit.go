// Package postgres provides the wish protocol daemon's optional,
// write-only session audit trail: a durable record of which sessions
// ran and how they ended, for operators who want history beyond the
// process-local blocklist/rate-limiter state. It is never consulted
// for trust decisions — a missing or unreachable database degrades to
// a no-op logger rather than failing sessions.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wish-project/wishd/internal/logger"
)

// Outcome records how a session ended, for the audit trail.
type Outcome struct {
	RequesterID string
	ResponderID string
	FinalStage  string // the last stage::String() reached
	Accepted    bool
	Duration    time.Duration
}

// AuditLog records completed sessions. It must never block or fail a
// session: every method swallows its own errors after logging them.
type AuditLog interface {
	Record(ctx context.Context, o Outcome)
	Close()
}

// noopLog is used whenever no DSN is configured.
type noopLog struct{}

func (noopLog) Record(context.Context, Outcome) {}
func (noopLog) Close()                          {}

// Store is a pgx-backed AuditLog.
type Store struct {
	pool *pgxpool.Pool
	log  logger.Logger
}

// NewStore connects to dsn and ensures the audit table exists. If dsn
// is empty, NewStore returns a no-op AuditLog rather than an error:
// the audit trail is a convenience, not a trust boundary.
func NewStore(ctx context.Context, dsn string, log logger.Logger) (AuditLog, error) {
	if dsn == "" {
		return noopLog{}, nil
	}
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{pool: pool, log: log}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS wish_session_audit (
			id            BIGSERIAL PRIMARY KEY,
			requester_id  TEXT NOT NULL,
			responder_id  TEXT NOT NULL,
			final_stage   TEXT NOT NULL,
			accepted      BOOLEAN NOT NULL,
			duration_ms   BIGINT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure audit schema: %w", err)
	}
	return nil
}

// Record inserts one outcome row. Failures are logged, not returned:
// a write-only audit trail must never affect the session it describes.
func (s *Store) Record(ctx context.Context, o Outcome) {
	const query = `
		INSERT INTO wish_session_audit
			(requester_id, responder_id, final_stage, accepted, duration_ms)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.pool.Exec(ctx, query,
		o.RequesterID, o.ResponderID, o.FinalStage, o.Accepted, o.Duration.Milliseconds())
	if err != nil {
		s.log.Warn("failed to record session audit row", logger.Error(err))
	}
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
