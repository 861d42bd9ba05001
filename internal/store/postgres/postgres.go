// Package postgres implements the durable lecture store and the
// database-backed embedding cache on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/fuskar/attendance/internal/config"
)

// Pool manages a PostgreSQL connection pool.
type Pool struct {
	db  *sql.DB
	dim int
}

// NewPool creates a new PostgreSQL connection pool.
func NewPool(cfg *config.DatabaseConfig, embeddingDim int) (*Pool, error) {
	if cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
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

	return &Pool{db: db, dim: embeddingDim}, nil
}

// DB returns the underlying sql.DB for direct access.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// Migrate creates the lecture tables and the pgvector-backed embedding cache.
func (p *Pool) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS lectures (
			id         UUID PRIMARY KEY,
			course_id  VARCHAR(64) NOT NULL,
			started_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			stopped_at TIMESTAMP WITH TIME ZONE,
			locked     BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS presence (
			lecture_id UUID NOT NULL REFERENCES lectures(id) ON DELETE CASCADE,
			student_id VARCHAR(64) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			PRIMARY KEY (lecture_id, student_id)
		)`,
		`CREATE TABLE IF NOT EXISTS emotions (
			id         BIGSERIAL PRIMARY KEY,
			lecture_id UUID NOT NULL REFERENCES lectures(id) ON DELETE CASCADE,
			label      VARCHAR(32) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS embedding_cache (
			image_path TEXT PRIMARY KEY,
			identity   VARCHAR(64) NOT NULL,
			embedding  vector(%d) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`, p.dim),
		`CREATE INDEX IF NOT EXISTS emotions_lecture_idx ON emotions(lecture_id)`,
	}

	for _, stmt := range statements {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
