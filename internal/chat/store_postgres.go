package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists chats and messages in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initChatSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initChatSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chats (
			id TEXT PRIMARY KEY,
			participants TEXT[] NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			last_message_at TIMESTAMPTZ NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chats_participants ON chats USING GIN (participants);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
			sender_id TEXT NOT NULL,
			sender_display_name TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat_created ON messages (chat_id, created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init chat schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateChat(ctx context.Context, c Chat) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chats (id, participants, created_at, last_message_at, is_active)
		 VALUES ($1,$2,$3,$4,$5)`,
		c.ID, c.Participants, c.CreatedAt, c.LastMessageAt, c.Active)
	if err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetChat(ctx context.Context, id string) (Chat, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, participants, created_at, last_message_at, is_active FROM chats WHERE id=$1`, id)
	return scanChat(row, "get chat")
}

func (s *PostgresStore) FindActiveByParticipants(ctx context.Context, a, b string) (Chat, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, participants, created_at, last_message_at, is_active
		   FROM chats
		  WHERE is_active AND participants @> ARRAY[$1,$2]::text[]
		  LIMIT 1`,
		a, b)
	return scanChat(row, "find chat by participants")
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]Chat, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, participants, created_at, last_message_at, is_active
		   FROM chats
		  WHERE is_active AND $1 = ANY(participants)
		  ORDER BY last_message_at DESC
		  LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	out := make([]Chat, 0, limit)
	for rows.Next() {
		c, err := scanChat(rows, "scan chat")
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SaveMessage(ctx context.Context, msg Message) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO messages (id, chat_id, sender_id, sender_display_name, content, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		msg.ID, msg.ChatID, msg.SenderID, msg.SenderDisplayName, msg.Content, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE chats SET last_message_at=$2 WHERE id=$1`, msg.ChatID, msg.CreatedAt); err != nil {
		return fmt.Errorf("bump last message at: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, chatID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, chat_id, sender_id, sender_display_name, content, created_at
		   FROM messages
		  WHERE chat_id=$1
		  ORDER BY created_at ASC
		  LIMIT $2`,
		chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0, 64)
	for rows.Next() {
		var msg Message
		if err := rows.Scan(
			&msg.ID,
			&msg.ChatID,
			&msg.SenderID,
			&msg.SenderDisplayName,
			&msg.Content,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

func scanChat(row pgx.Row, op string) (Chat, error) {
	var c Chat
	if err := row.Scan(
		&c.ID,
		&c.Participants,
		&c.CreatedAt,
		&c.LastMessageAt,
		&c.Active,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Chat{}, ErrNotFound
		}
		return Chat{}, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
