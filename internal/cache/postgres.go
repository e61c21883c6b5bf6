package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresStore is the shared L2: a cache_entries table in the platform's
// Postgres, visible to every instance. Expiry is enforced in the read query;
// a periodic DELETE of expired rows is left to operations.
type PostgresStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

const createCacheTableSQL = `
CREATE TABLE IF NOT EXISTS cache_entries (
    key        TEXT PRIMARY KEY,
    value      BYTEA NOT NULL,
    tags       TEXT[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_tags ON cache_entries USING GIN (tags);
CREATE INDEX IF NOT EXISTS idx_cache_entries_expires ON cache_entries (expires_at);
`

func NewPostgresStore(ctx context.Context, db *pgxpool.Pool, logger *zap.Logger) (*PostgresStore, error) {
	if _, err := db.Exec(ctx, createCacheTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create cache table: %w", err)
	}
	return &PostgresStore{db: db, logger: logger}, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*Entry, error) {
	query := squirrel.Select("value", "tags", "created_at", "expires_at").
		From("cache_entries").
		Where(squirrel.Eq{"key": key}).
		Where(squirrel.Expr("expires_at > now()")).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var entry Entry
	row := s.db.QueryRow(ctx, sql, args...)
	if err := row.Scan(&entry.Value, &entry.Tags, &entry.CreatedAt, &entry.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return &entry, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error {
	now := time.Now()
	if tags == nil {
		tags = []string{}
	}

	query := squirrel.Insert("cache_entries").
		Columns("key", "value", "tags", "created_at", "expires_at").
		Values(key, value, tags, now, now.Add(ttl)).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, tags = EXCLUDED.tags, created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	if _, err := s.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	query := squirrel.Delete("cache_entries").
		Where(squirrel.Eq{"key": key}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	if _, err := s.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) InvalidateByTag(ctx context.Context, tag string) (int, error) {
	tagCmd, err := s.db.Exec(ctx, "DELETE FROM cache_entries WHERE $1 = ANY(tags)", tag)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate tag %q: %w", tag, err)
	}
	return int(tagCmd.RowsAffected()), nil
}
