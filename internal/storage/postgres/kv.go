package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/chorbazzar/internal/storage"
)

const (
	getRecordSQL = `SELECT value FROM kv_records WHERE key = $1`

	putRecordSQL = `INSERT INTO kv_records (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
)

var (
	_ storage.Store  = (*RecordStore)(nil)
	_ storage.Pinger = (*RecordStore)(nil)
)

// RecordStore implements storage.Store on the kv_records table.
type RecordStore struct {
	pool *pgxpool.Pool
}

// NewRecordStore returns a RecordStore that uses the given pool.
func NewRecordStore(pool *pgxpool.Pool) *RecordStore {
	return &RecordStore{pool: pool}
}

// Get returns the record stored under key.
func (s *RecordStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	if err := s.pool.QueryRow(ctx, getRecordSQL, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("getting record %q: %w", key, err)
	}
	return value, nil
}

// Put upserts the record stored under key.
func (s *RecordStore) Put(ctx context.Context, key string, value []byte) error {
	if _, err := s.pool.Exec(ctx, putRecordSQL, key, value); err != nil {
		return fmt.Errorf("putting record %q: %w", key, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *RecordStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
