package testsupport

import (
	"context"
	"testing"

	"filmroom/internal/config"
	"filmroom/internal/vectorstore"
)

// MustOpenStore opens the configured vector store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) vectorstore.Store {
	t.Helper()

	store, err := vectorstore.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("vectorstore.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// SeedCollection upserts records into the named collection.
func SeedCollection(t testing.TB, store vectorstore.Store, name string, records ...vectorstore.Record) vectorstore.Collection {
	t.Helper()

	ctx := context.Background()
	coll, err := store.GetOrCreateCollection(ctx, name)
	if err != nil {
		t.Fatalf("GetOrCreateCollection: %v", err)
	}
	if len(records) > 0 {
		if err := coll.Upsert(ctx, records); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	return coll
}
