package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/fuskar/attendance/internal/classifier"
	"github.com/fuskar/attendance/internal/embedcache"
)

// EmbeddingCache is the PostgreSQL/pgvector backend of the embedding cache.
// Every write is durable immediately, so Flush is a no-op.
type EmbeddingCache struct {
	pool      *Pool
	extractor embedcache.Extractor
}

// NewEmbeddingCache creates a database-backed embedding cache.
func NewEmbeddingCache(pool *Pool, extractor embedcache.Extractor) *EmbeddingCache {
	return &EmbeddingCache{pool: pool, extractor: extractor}
}

func (c *EmbeddingCache) GetOrCompute(ctx context.Context, imagePath, identity string) ([]float32, error) {
	var vec pgvector.Vector
	err := c.pool.db.QueryRowContext(ctx, `
		SELECT embedding FROM embedding_cache WHERE image_path = $1
	`, imagePath).Scan(&vec)
	if err == nil {
		return vec.Slice(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("query embedding cache: %w", err)
	}

	embedding, err := c.extractor.ExtractFace(ctx, imagePath)
	if err != nil {
		return nil, err
	}

	// Path collision replaces the entry wholesale.
	_, err = c.pool.db.ExecContext(ctx, `
		INSERT INTO embedding_cache (image_path, identity, embedding)
		VALUES ($1, $2, $3::vector)
		ON CONFLICT (image_path) DO UPDATE SET
			identity = EXCLUDED.identity,
			embedding = EXCLUDED.embedding,
			created_at = NOW()
	`, imagePath, identity, pgvector.NewVector(embedding))
	if err != nil {
		return nil, fmt.Errorf("store embedding: %w", err)
	}

	return embedding, nil
}

func (c *EmbeddingCache) Invalidate(ctx context.Context, imagePath string) error {
	if _, err := c.pool.db.ExecContext(ctx, `
		DELETE FROM embedding_cache WHERE image_path = $1
	`, imagePath); err != nil {
		return fmt.Errorf("invalidate embedding: %w", err)
	}
	return nil
}

func (c *EmbeddingCache) Samples(ctx context.Context) ([]classifier.Sample, error) {
	rows, err := c.pool.db.QueryContext(ctx, `
		SELECT image_path, identity, embedding FROM embedding_cache
	`)
	if err != nil {
		return nil, fmt.Errorf("query embedding cache: %w", err)
	}
	defer rows.Close()

	var samples []classifier.Sample
	for rows.Next() {
		var s classifier.Sample
		var vec pgvector.Vector
		if err := rows.Scan(&s.ImagePath, &s.Identity, &vec); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		s.Embedding = vec.Slice()
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}

	return samples, nil
}

// Flush is a no-op; the database persists every write synchronously.
func (c *EmbeddingCache) Flush(ctx context.Context) error {
	return nil
}
