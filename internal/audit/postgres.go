package audit

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Store backed by PostgreSQL. It does not own the pgx
// pool; Close is a no-op, matching the ownership split internal/app's
// App uses for its own pool lifecycle.
//
// Expected schema:
//
//	CREATE TABLE etp_sessions (
//	  session_id    text PRIMARY KEY,
//	  role          text NOT NULL,
//	  version       text NOT NULL,
//	  protocols     integer[] NOT NULL,
//	  opened_at     timestamptz NOT NULL,
//	  closed_at     timestamptz,
//	  close_reason  text
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed Store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("audit: nil pool")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error { return nil }

func (s *PostgresStore) RecordOpened(ctx context.Context, rec SessionRecord) error {
	if rec.SessionID == "" {
		return errors.New("audit: missing session id")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO etp_sessions (session_id, role, version, protocols, opened_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (session_id) DO NOTHING`,
		rec.SessionID, rec.Role, rec.Version, rec.Protocols, rec.OpenedAt,
	)
	return err
}

func (s *PostgresStore) RecordClosed(ctx context.Context, sessionID string, closedAt time.Time, reason string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE etp_sessions SET closed_at = $2, close_reason = $3 WHERE session_id = $1`,
		sessionID, closedAt, reason,
	)
	return err
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT session_id, role, version, protocols, opened_at,
		        COALESCE(closed_at, 'epoch'::timestamptz), COALESCE(close_reason, '')
		   FROM etp_sessions
		  ORDER BY opened_at DESC
		  LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]SessionRecord, 0, limit)
	for rows.Next() {
		var rec SessionRecord
		if err := rows.Scan(&rec.SessionID, &rec.Role, &rec.Version, &rec.Protocols,
			&rec.OpenedAt, &rec.ClosedAt, &rec.CloseReason); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
