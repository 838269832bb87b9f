package qastore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telembed/telembed/internal/domain/qa"
)

// PostgresStore implements qa.Store over a single table holding the
// ordered entry list as JSONB rows.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs the store and provisions its schema.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS qa_entries (
			position      INT PRIMARY KEY,
			question_hash TEXT NOT NULL,
			entry         JSONB NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("provision qa_entries: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// ReadAll loads entries in stored order. An empty table reads as empty.
func (s *PostgresStore) ReadAll(ctx context.Context) ([]qa.Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT entry FROM qa_entries ORDER BY position
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []qa.Entry{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var entry qa.Entry
		if err := json.Unmarshal(payload, &entry); err != nil {
			return nil, fmt.Errorf("decode qa entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// WriteAll replaces the full entry list in one transaction.
func (s *PostgresStore) WriteAll(ctx context.Context, entries []qa.Entry) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `TRUNCATE qa_entries`); err != nil {
		return err
	}
	for i, entry := range entries {
		payload, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("encode qa entry: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO qa_entries (position, question_hash, entry)
			VALUES ($1, $2, $3)
		`, i, entry.Hash(), payload); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

var _ qa.Store = (*PostgresStore)(nil)
