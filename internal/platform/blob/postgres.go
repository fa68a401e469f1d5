package blob

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/wareneingang/internal/platform/db"
)

const createBlobTable = `CREATE TABLE IF NOT EXISTS kv_blobs (
	key        TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Postgres stores documents in a single kv_blobs table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps a pool and ensures the table exists.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	if _, err := pool.Exec(ctx, createBlobTable); err != nil {
		return nil, fmt.Errorf("blob: create table: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Get loads the document at key.
func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.pool.QueryRow(ctx, `SELECT value FROM kv_blobs WHERE key=$1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Put upserts the document at key.
func (p *Postgres) Put(ctx context.Context, key string, value []byte) error {
	return db.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO kv_blobs (key, value, updated_at) VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`, key, value)
		return err
	})
}
