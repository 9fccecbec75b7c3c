package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"filmroom/internal/config"
)

const pgSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS filmroom_collections (
    name TEXT PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS filmroom_embeddings (
    collection TEXT NOT NULL REFERENCES filmroom_collections(name),
    id TEXT NOT NULL,
    embedding vector NOT NULL,
    metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
    document TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (collection, id)
);
`

// PGVectorStore keeps collections in PostgreSQL using the pgvector extension.
type PGVectorStore struct {
	pool     *pgxpool.Pool
	operator string
}

// OpenPGVector connects to dsn and ensures the schema exists.
func OpenPGVector(ctx context.Context, dsn, metric string) (*PGVectorStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("vector store: postgres dsn required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure pgvector schema: %w", err)
	}
	operator := "<->"
	if normalizeMetric(metric) == config.DistanceCosine {
		operator = "<=>"
	}
	return &PGVectorStore{pool: pool, operator: operator}, nil
}

// Close releases the connection pool.
func (s *PGVectorStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// GetOrCreateCollection implements Store.
func (s *PGVectorStore) GetOrCreateCollection(ctx context.Context, name string) (Collection, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	if _, err := s.pool.Exec(ctx,
		"INSERT INTO filmroom_collections (name) VALUES ($1) ON CONFLICT (name) DO NOTHING", name); err != nil {
		return nil, fmt.Errorf("create collection %q: %w", name, err)
	}
	return &pgCollection{store: s, name: name}, nil
}

type pgCollection struct {
	store *PGVectorStore
	name  string
}

func (c *pgCollection) Name() string { return c.name }

func (c *pgCollection) Count(ctx context.Context) (int, error) {
	var count int
	if err := c.store.pool.QueryRow(ctx,
		"SELECT COUNT(1) FROM filmroom_embeddings WHERE collection = $1", c.name).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %q: %w", c.name, err)
	}
	return count, nil
}

func (c *pgCollection) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := validateRecords(records); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, record := range records {
		metadata, err := encodeMetadata(record.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata for %q: %w", record.ID, err)
		}
		batch.Queue(`INSERT INTO filmroom_embeddings (collection, id, embedding, metadata, document, updated_at)
VALUES ($1, $2, $3, $4::jsonb, $5, now())
ON CONFLICT (collection, id) DO UPDATE SET
    embedding = EXCLUDED.embedding,
    metadata = EXCLUDED.metadata,
    document = EXCLUDED.document,
    updated_at = EXCLUDED.updated_at`,
			c.name, record.ID, pgvector.NewVector(record.Embedding), metadata, record.Document)
	}
	if err := c.store.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert into %q: %w", c.name, err)
	}
	return nil
}

func (c *pgCollection) Query(ctx context.Context, embedding []float32, k int) ([]Example, error) {
	if len(embedding) == 0 {
		return nil, errors.New("vector store: empty query embedding")
	}
	if k <= 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT id, embedding %[1]s $2 AS distance, metadata::text, document
FROM filmroom_embeddings
WHERE collection = $1
ORDER BY embedding %[1]s $2, id
LIMIT $3`, c.store.operator)
	rows, err := c.store.pool.Query(ctx, query, c.name, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", c.name, err)
	}
	defer rows.Close()

	var examples []Example
	for rows.Next() {
		var (
			example  Example
			metadata string
		)
		if err := rows.Scan(&example.ID, &example.Distance, &metadata, &example.Document); err != nil {
			return nil, fmt.Errorf("scan %q: %w", c.name, err)
		}
		example.Metadata = map[string]any{}
		if err := json.Unmarshal([]byte(metadata), &example.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %q: %w", example.ID, err)
		}
		examples = append(examples, example)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %q: %w", c.name, err)
	}
	return examples, nil
}
