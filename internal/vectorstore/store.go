package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"filmroom/internal/config"
)

// ErrDimensionMismatch is returned when a query or record vector does not
// match the dimensionality already stored in a collection.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Example is a stored document returned by a nearest-neighbour query.
type Example struct {
	ID       string         `json:"id"`
	Distance float64        `json:"distance"`
	Metadata map[string]any `json:"metadata"`
	Document string         `json:"document"`
}

// Record is a document to upsert.
type Record struct {
	ID        string
	Embedding []float32
	Metadata  map[string]any
	Document  string
}

// Collection is a named set of embedded documents.
type Collection interface {
	Name() string
	// Query returns up to k examples nearest to embedding.
	Query(ctx context.Context, embedding []float32, k int) ([]Example, error)
	// Upsert inserts or replaces records by ID.
	Upsert(ctx context.Context, records []Record) error
	Count(ctx context.Context) (int, error)
}

// Store opens collections.
type Store interface {
	// GetOrCreateCollection returns the named collection, creating it when
	// absent. Existing contents are left untouched.
	GetOrCreateCollection(ctx context.Context, name string) (Collection, error)
	Close() error
}

// Open constructs the configured backend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	vs := cfg.VectorStore
	switch vs.Backend {
	case config.BackendSQLite, "":
		return OpenSQLite(ctx, vs.Path, vs.Distance)
	case config.BackendPGVector:
		return OpenPGVector(ctx, vs.DSN, vs.Distance)
	default:
		return nil, fmt.Errorf("vector store: unsupported backend %q", vs.Backend)
	}
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("vector store: collection name required")
	}
	return name, nil
}

func validateRecords(records []Record) error {
	for i, record := range records {
		if strings.TrimSpace(record.ID) == "" {
			return fmt.Errorf("vector store: record %d has empty id", i)
		}
		if len(record.Embedding) == 0 {
			return fmt.Errorf("vector store: record %q has empty embedding", record.ID)
		}
		if len(record.Embedding) != len(records[0].Embedding) {
			return fmt.Errorf("%w: record %q has %d dimensions, expected %d",
				ErrDimensionMismatch, record.ID, len(record.Embedding), len(records[0].Embedding))
		}
	}
	return nil
}

// distance computes the configured metric. l2 is Euclidean distance; cosine
// is 1 - cosine similarity, matching pgvector's <-> and <=> operators.
func distance(metric string, a, b []float32) float64 {
	if metric == config.DistanceCosine {
		var dot, na, nb float64
		for i := range a {
			x, y := float64(a[i]), float64(b[i])
			dot += x * y
			na += x * x
			nb += y * y
		}
		if na == 0 || nb == 0 {
			return 1
		}
		return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
