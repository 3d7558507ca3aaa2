// Package postgres provides a PostgreSQL + pgvector backend for the
// embedding store, for deployments that outgrow the single-file snapshot.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/facefind/internal/config"
	"github.com/kozaktomas/facefind/internal/store"
)

// Store keeps face embedding records in a pgvector-enabled PostgreSQL table.
// It implements store.Store: appends are still expected to be serialized by
// the caller, reads see committed rows only.
type Store struct {
	db  *sql.DB
	dim int
}

// Open connects to PostgreSQL, verifies the connection and ensures the
// face_records table exists.
func Open(cfg *config.StoreConfig, dim int) (*Store, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required for the postgres store backend")
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, dim: dim}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("creating vector extension: %w", err)
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS face_records (
			id TEXT PRIMARY KEY,
			photo_ref TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			model TEXT NOT NULL,
			dim INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, s.dim))
	if err != nil {
		return fmt.Errorf("creating face_records table: %w", err)
	}
	return nil
}

// Append inserts one record.
func (s *Store) Append(ctx context.Context, rec store.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO face_records (id, photo_ref, embedding, model, dim, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.ID, rec.PhotoRef, pgvector.NewVector(rec.Embedding), rec.Model, rec.Dim, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting face record: %w", err)
	}
	return nil
}

// Snapshot loads every record, in insertion order. The search engine runs a
// linear scan over the result, same as with the file backend.
func (s *Store) Snapshot(ctx context.Context) ([]store.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, photo_ref, embedding, model, dim, created_at
		FROM face_records
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying face records: %w", err)
	}
	defer rows.Close()

	var recs []store.Record
	for rows.Next() {
		var rec store.Record
		var vec pgvector.Vector
		if err := rows.Scan(&rec.ID, &rec.PhotoRef, &vec, &rec.Model, &rec.Dim, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning face record: %w", err)
		}
		rec.Embedding = vec.Slice()
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Count returns the number of records stored.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM face_records`).Scan(&count)
	return count, err
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}
