package signaling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists signaling records in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSignalingSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initSignalingSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS signaling_records (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_signaling_chat_kind_created
			ON signaling_records (chat_id, kind, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_signaling_expires ON signaling_records (expires_at);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init signaling schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO signaling_records (id, chat_id, sender_id, kind, payload, created_at, expires_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		rec.ID,
		rec.ChatID,
		rec.SenderID,
		string(rec.Kind),
		[]byte(rec.Payload),
		rec.CreatedAt,
		rec.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("save signaling record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Latest(ctx context.Context, chatID string, kind Kind, readerID string, now time.Time) (Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, chat_id, sender_id, kind, payload, created_at, expires_at
		   FROM signaling_records
		  WHERE chat_id=$1 AND kind=$2 AND sender_id<>$3 AND expires_at > $4
		  ORDER BY created_at DESC
		  LIMIT 1`,
		chatID, string(kind), readerID, now,
	)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("latest signaling record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) VisibleCandidates(ctx context.Context, chatID, readerID string, now time.Time) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, chat_id, sender_id, kind, payload, created_at, expires_at
		   FROM signaling_records
		  WHERE chat_id=$1 AND kind=$2 AND sender_id<>$3 AND expires_at > $4
		  ORDER BY created_at ASC`,
		chatID, string(KindCandidate), readerID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, 8)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM signaling_records WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired signaling records: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec     Record
		kind    string
		payload []byte
	)
	if err := row.Scan(
		&rec.ID,
		&rec.ChatID,
		&rec.SenderID,
		&kind,
		&payload,
		&rec.CreatedAt,
		&rec.ExpiresAt,
	); err != nil {
		return Record{}, err
	}
	rec.Kind = Kind(kind)
	rec.Payload = payload
	return rec, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
