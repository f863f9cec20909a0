package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

const documentsSchema = `
CREATE TABLE IF NOT EXISTS prep_documents (
	key        TEXT PRIMARY KEY,
	body       TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore is a PostgreSQL-backed DocumentStore.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates the documents table if needed and returns the store.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	if _, err := pool.Exec(ctx, documentsSchema); err != nil {
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Get(key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	var body string
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM prep_documents WHERE key = $1`,
		key,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return []byte(body), true, nil
}

// Put upserts all documents in a single transaction.
func (s *PostgresStore) Put(docs ...Document) error {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, d := range docs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO prep_documents (key, body, updated_at)
			 VALUES ($1, $2, now())
			 ON CONFLICT (key) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`,
			d.Key,
			string(d.Body),
		); err != nil {
			return fmt.Errorf("put %s: %w", d.Key, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(keys ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	if _, err := s.pool.Exec(ctx,
		`DELETE FROM prep_documents WHERE key = ANY($1)`,
		keys,
	); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}
