package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// registryKey is the well-known key the whole registry snapshot lives under.
const registryKey = "registry"

// PostgresStore persists the registry snapshot as a single JSONB row, so the
// chat room survives process restarts while keeping the narrow
// fetch/replace store contract.
//
// Ownership model:
// - PostgresStore does NOT own the pgx pool. The caller must close the pool.
// - Close() is therefore a no-op.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed Store and ensures the
// backing table exists.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("chat: nil pool")
	}

	const ddl = `
CREATE TABLE IF NOT EXISTS banter_registry (
	key        text PRIMARY KEY,
	snapshot   jsonb NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
)`
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return nil, fmt.Errorf("chat: ensure registry table: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Load fetches the snapshot row; a missing row yields an empty snapshot.
func (s *PostgresStore) Load(ctx context.Context) (Snapshot, error) {
	if s == nil || s.pool == nil {
		return Snapshot{}, errors.New("chat: nil store")
	}

	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT snapshot FROM banter_registry WHERE key = $1`, registryKey,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return NewSnapshot(), nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("chat: load registry: %w", err)
	}

	var snap Snapshot
	if err := snap.UnmarshalJSON(raw); err != nil {
		return Snapshot{}, fmt.Errorf("chat: decode registry: %w", err)
	}
	return snap, nil
}

// Save upserts the snapshot row as a whole.
func (s *PostgresStore) Save(ctx context.Context, snap Snapshot) error {
	if s == nil || s.pool == nil {
		return errors.New("chat: nil store")
	}

	raw, err := snap.MarshalJSON()
	if err != nil {
		return fmt.Errorf("chat: encode registry: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
INSERT INTO banter_registry (key, snapshot, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = now()`,
		registryKey, raw)
	if err != nil {
		return fmt.Errorf("chat: save registry: %w", err)
	}
	return nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }
