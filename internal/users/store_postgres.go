package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists anonymous accounts in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initUserSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initUserSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			anonymous_id TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			last_active TIMESTAMPTZ NOT NULL,
			is_blocked BOOLEAN NOT NULL DEFAULT FALSE,
			device_tokens TEXT[] NOT NULL DEFAULT '{}'
		);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init user schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, anonymous_id, display_name, created_at, last_active, is_blocked, device_tokens)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		u.ID,
		u.AnonymousID,
		u.DisplayName,
		u.CreatedAt,
		u.LastActive,
		u.Blocked,
		u.DeviceTokens,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, anonymous_id, display_name, created_at, last_active, is_blocked, device_tokens
		   FROM users WHERE id=$1`, id)
	var u User
	if err := row.Scan(
		&u.ID,
		&u.AnonymousID,
		&u.DisplayName,
		&u.CreatedAt,
		&u.LastActive,
		&u.Blocked,
		&u.DeviceTokens,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) AnonymousIDTaken(ctx context.Context, anonymousID string) (bool, error) {
	var taken bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE anonymous_id=$1)`, anonymousID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check anonymous id: %w", err)
	}
	return taken, nil
}

func (s *PostgresStore) TouchLastActive(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET last_active=now() WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("touch last active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AddDeviceToken(ctx context.Context, id, token string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users
		    SET device_tokens = array_append(device_tokens, $2)
		  WHERE id=$1 AND NOT ($2 = ANY(device_tokens))`,
		id, token)
	if err != nil {
		return fmt.Errorf("add device token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the user is missing or the token is already registered;
		// distinguish so callers get ErrNotFound only for the former.
		if _, err := s.GetUser(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) DeviceTokens(ctx context.Context, id string) ([]string, error) {
	var tokens []string
	err := s.pool.QueryRow(ctx,
		`SELECT device_tokens FROM users WHERE id=$1`, id).Scan(&tokens)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get device tokens: %w", err)
	}
	return tokens, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
