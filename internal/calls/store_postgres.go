package calls

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists call sessions in PostgreSQL. The at-most-one
// active session per chat invariant is enforced by a partial unique index,
// so concurrent opens on one chat race at the database and exactly one wins.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initCallSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initCallSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS call_sessions (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL,
			caller_id TEXT NOT NULL,
			caller_display_name TEXT NOT NULL DEFAULT '',
			receiver_id TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			started_at TIMESTAMPTZ NULL,
			ended_at TIMESTAMPTZ NULL,
			duration_minutes INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_call_sessions_active_chat
			ON call_sessions (chat_id) WHERE status IN ('pending', 'accepted');`,
		`CREATE INDEX IF NOT EXISTS idx_call_sessions_caller ON call_sessions (caller_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_call_sessions_receiver ON call_sessions (receiver_id, created_at DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init call schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

const sessionColumns = `id, chat_id, caller_id, caller_display_name, receiver_id, status,
		created_at, started_at, ended_at, duration_minutes`

func (s *PostgresStore) CreateSession(ctx context.Context, sess CallSession) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO call_sessions (`+sessionColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		sess.ID,
		sess.ChatID,
		sess.CallerID,
		sess.CallerDisplayName,
		sess.ReceiverID,
		string(sess.Status),
		sess.CreatedAt,
		sess.StartedAt,
		sess.EndedAt,
		sess.DurationMinutes,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert call session: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (CallSession, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM call_sessions WHERE id=$1`, id)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CallSession{}, ErrNotFound
		}
		return CallSession{}, fmt.Errorf("get call session: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, status Status, limit int) ([]CallSession, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		   FROM call_sessions
		  WHERE (caller_id=$1 OR receiver_id=$1) AND ($2 = '' OR status=$2)
		  ORDER BY created_at DESC
		  LIMIT $3`,
		userID, string(status), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list call sessions: %w", err)
	}
	defer rows.Close()

	out := make([]CallSession, 0, limit)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan call session: %w", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate call sessions: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Accept(ctx context.Context, id, receiverID string, at time.Time) (CallSession, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE call_sessions
		    SET status=$3, started_at=$4
		  WHERE id=$1 AND receiver_id=$2 AND status=$5
		  RETURNING `+sessionColumns,
		id, receiverID, string(StatusAccepted), at, string(StatusPending),
	)
	return scanTransition(row, "accept call session")
}

func (s *PostgresStore) Reject(ctx context.Context, id, receiverID string) (CallSession, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE call_sessions
		    SET status=$3
		  WHERE id=$1 AND receiver_id=$2 AND status=$4
		  RETURNING `+sessionColumns,
		id, receiverID, string(StatusRejected), string(StatusPending),
	)
	return scanTransition(row, "reject call session")
}

func (s *PostgresStore) End(ctx context.Context, id, requesterID string, at time.Time) (CallSession, error) {
	// Duration is derived in the same write so no second round trip can
	// observe an ended session without it.
	row := s.pool.QueryRow(ctx,
		`UPDATE call_sessions
		    SET status=$3,
		        ended_at=$4,
		        duration_minutes=COALESCE(FLOOR(EXTRACT(EPOCH FROM ($4::timestamptz - started_at)) / 60), 0)::int
		  WHERE id=$1
		    AND status=$5
		    AND (caller_id=$2 OR receiver_id=$2)
		  RETURNING `+sessionColumns,
		id, requesterID, string(StatusEnded), at, string(StatusAccepted),
	)
	return scanTransition(row, "end call session")
}

func (s *PostgresStore) ExpirePending(ctx context.Context, cutoff time.Time) ([]CallSession, error) {
	rows, err := s.pool.Query(ctx,
		`UPDATE call_sessions
		    SET status=$1
		  WHERE status=$2 AND created_at < $3
		  RETURNING `+sessionColumns,
		string(StatusRejected), string(StatusPending), cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("expire pending sessions: %w", err)
	}
	defer rows.Close()

	var expired []CallSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired session: %w", err)
		}
		expired = append(expired, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired sessions: %w", err)
	}
	return expired, nil
}

func scanTransition(row pgx.Row, op string) (CallSession, error) {
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CallSession{}, ErrNotFound
		}
		return CallSession{}, fmt.Errorf("%s: %w", op, err)
	}
	return sess, nil
}

func scanSession(row pgx.Row) (CallSession, error) {
	var (
		sess   CallSession
		status string
	)
	if err := row.Scan(
		&sess.ID,
		&sess.ChatID,
		&sess.CallerID,
		&sess.CallerDisplayName,
		&sess.ReceiverID,
		&status,
		&sess.CreatedAt,
		&sess.StartedAt,
		&sess.EndedAt,
		&sess.DurationMinutes,
	); err != nil {
		return CallSession{}, err
	}
	sess.Status = Status(status)
	return sess, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
