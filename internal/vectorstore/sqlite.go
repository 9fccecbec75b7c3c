package vectorstore

import (
	"cmp"
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	_ "modernc.org/sqlite"

	"filmroom/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped when schema.sql changes incompatibly.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// SQLiteStore keeps collections in a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	metric string
}

// OpenSQLite opens (creating if needed) the store at path.
func OpenSQLite(ctx context.Context, path, metric string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("vector store: sqlite path required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLiteStore{db: db, path: path, metric: normalizeMetric(metric)}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: %s has version %d, expected %d", ErrSchemaMismatch, s.path, version, schemaVersion)
	}
	return nil
}

func (s *SQLiteStore) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// GetOrCreateCollection implements Store.
func (s *SQLiteStore) GetOrCreateCollection(ctx context.Context, name string) (Collection, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	err = retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx,
			"INSERT INTO collections (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING",
			name, time.Now().UTC().Format(time.RFC3339Nano))
		return execErr
	})
	if err != nil {
		return nil, fmt.Errorf("create collection %q: %w", name, err)
	}
	return &sqliteCollection{store: s, name: name}, nil
}

type sqliteCollection struct {
	store *SQLiteStore
	name  string
}

func (c *sqliteCollection) Name() string { return c.name }

func (c *sqliteCollection) Count(ctx context.Context) (int, error) {
	var count int
	err := c.store.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM embeddings WHERE collection = ?", c.name).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count %q: %w", c.name, err)
	}
	return count, nil
}

func (c *sqliteCollection) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := validateRecords(records); err != nil {
		return err
	}
	return retryOnBusy(ctx, func() error {
		tx, err := c.store.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin upsert tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var existing sql.NullInt64
		if err := tx.QueryRowContext(ctx,
			"SELECT dimensions FROM embeddings WHERE collection = ? LIMIT 1", c.name,
		).Scan(&existing); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read dimensions: %w", err)
		}
		dims := len(records[0].Embedding)
		if existing.Valid && int(existing.Int64) != dims {
			return fmt.Errorf("%w: collection %q stores %d dimensions, got %d",
				ErrDimensionMismatch, c.name, existing.Int64, dims)
		}

		now := time.Now().UTC().Format(time.RFC3339Nano)
		for _, record := range records {
			metadata, err := encodeMetadata(record.Metadata)
			if err != nil {
				return fmt.Errorf("encode metadata for %q: %w", record.ID, err)
			}
			_, err = tx.ExecContext(ctx, `INSERT INTO embeddings (collection, id, dimensions, embedding, metadata, document, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(collection, id) DO UPDATE SET
    dimensions = excluded.dimensions,
    embedding = excluded.embedding,
    metadata = excluded.metadata,
    document = excluded.document,
    updated_at = excluded.updated_at`,
				c.name, record.ID, dims, pgvector.NewVector(record.Embedding), metadata, record.Document, now)
			if err != nil {
				return fmt.Errorf("upsert %q: %w", record.ID, err)
			}
		}
		return tx.Commit()
	})
}

func (c *sqliteCollection) Query(ctx context.Context, embedding []float32, k int) ([]Example, error) {
	if len(embedding) == 0 {
		return nil, errors.New("vector store: empty query embedding")
	}
	if k <= 0 {
		return nil, nil
	}
	rows, err := c.store.db.QueryContext(ctx,
		"SELECT id, dimensions, embedding, metadata, document FROM embeddings WHERE collection = ?", c.name)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", c.name, err)
	}
	defer rows.Close()

	var examples []Example
	for rows.Next() {
		var (
			id, metadata, document string
			dims                   int
			vector                 pgvector.Vector
		)
		if err := rows.Scan(&id, &dims, &vector, &metadata, &document); err != nil {
			return nil, fmt.Errorf("scan %q: %w", c.name, err)
		}
		if dims != len(embedding) {
			return nil, fmt.Errorf("%w: collection %q stores %d dimensions, query has %d",
				ErrDimensionMismatch, c.name, dims, len(embedding))
		}
		decoded, err := decodeMetadata(metadata)
		if err != nil {
			return nil, fmt.Errorf("decode metadata for %q: %w", id, err)
		}
		examples = append(examples, Example{
			ID:       id,
			Distance: distance(c.store.metric, embedding, vector.Slice()),
			Metadata: decoded,
			Document: document,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %q: %w", c.name, err)
	}

	slices.SortStableFunc(examples, func(a, b Example) int {
		if byDistance := cmp.Compare(a.Distance, b.Distance); byDistance != 0 {
			return byDistance
		}
		return strings.Compare(a.ID, b.ID)
	})
	if len(examples) > k {
		examples = examples[:k]
	}
	return examples, nil
}

func encodeMetadata(metadata map[string]any) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeMetadata(raw string) (map[string]any, error) {
	out := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeMetric(metric string) string {
	if strings.EqualFold(strings.TrimSpace(metric), config.DistanceCosine) {
		return config.DistanceCosine
	}
	return config.DistanceL2
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
