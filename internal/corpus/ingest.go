package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"filmroom/internal/classify"
	"filmroom/internal/config"
	"filmroom/internal/logging"
	"filmroom/internal/motion"
	"filmroom/internal/retrieval"
	"filmroom/internal/services"
	"filmroom/internal/structured"
	"filmroom/internal/textutil"
	"filmroom/internal/vectorstore"
)

// ErrLocked is returned when another writer holds the corpus lock past the
// caller's deadline.
var ErrLocked = errors.New("corpus lock held by another writer")

const lockRetryDelay = 250 * time.Millisecond

// Options configures an Ingester.
type Options struct {
	Collection string
	EmbedModel string
	LockPath   string
}

// OptionsFrom derives ingest options from configuration. The lock sits next
// to the SQLite file, or under the log directory for PostgreSQL.
func OptionsFrom(cfg *config.Config) Options {
	lockPath := filepath.Join(cfg.Paths.LogDir, "corpus-"+textutil.SanitizeToken(cfg.VectorStore.Collection)+".lock")
	if cfg.VectorStore.Backend == config.BackendSQLite {
		lockPath = cfg.VectorStore.Path + ".lock"
	}
	return Options{
		Collection: cfg.VectorStore.Collection,
		EmbedModel: cfg.Gemini.EmbedModel,
		LockPath:   lockPath,
	}
}

// Entry reports one ingested document.
type Entry struct {
	ID     string   `json:"id"`
	Source string   `json:"source"`
	Labels []string `json:"labels"`
}

// Ingester embeds documents and upserts them into the collection.
type Ingester struct {
	embedder retrieval.Embedder
	store    vectorstore.Store
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

// NewIngester constructs an Ingester.
func NewIngester(embedder retrieval.Embedder, store vectorstore.Store, opts Options, logger *slog.Logger) *Ingester {
	return &Ingester{
		embedder: embedder,
		store:    store,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "corpus"),
		now:      time.Now,
	}
}

// AddFiles ingests JSON documents from paths. Every file is read and embedded
// before anything is written, so a bad file leaves the collection unchanged.
func (i *Ingester) AddFiles(ctx context.Context, paths []string) ([]Entry, error) {
	if len(paths) == 0 {
		return nil, services.Wrap(services.ErrInput, "corpus", "add", "no files given", nil)
	}
	lock := flock.New(i.opts.LockPath)
	if err := os.MkdirAll(filepath.Dir(i.opts.LockPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure lock directory: %w", err)
	}
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s", ErrLocked, i.opts.LockPath)
		}
		return nil, fmt.Errorf("acquire corpus lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, i.opts.LockPath)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			i.logger.Warn("failed to release corpus lock", logging.Error(err))
		}
	}()

	records := make([]vectorstore.Record, 0, len(paths))
	entries := make([]Entry, 0, len(paths))
	ingestedAt := i.now().UTC().Format(time.RFC3339)
	for _, path := range paths {
		record, entry, err := i.prepare(ctx, path)
		if err != nil {
			return nil, err
		}
		record.Metadata["ingested_at"] = ingestedAt
		records = append(records, record)
		entries = append(entries, entry)
	}

	collection, err := i.store.GetOrCreateCollection(ctx, i.opts.Collection)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "corpus", "open_collection", "vector store", err)
	}
	if err := collection.Upsert(ctx, records); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "corpus", "upsert", "vector store", err)
	}
	i.logger.Info("corpus updated",
		logging.String("collection", i.opts.Collection),
		logging.Int("documents", len(records)),
	)
	return entries, nil
}

func (i *Ingester) prepare(ctx context.Context, path string) (vectorstore.Record, Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return vectorstore.Record{}, Entry{}, services.Wrap(services.ErrInput, "corpus", "read", path, err)
	}
	value, err := structured.Decode(data)
	if err != nil {
		return vectorstore.Record{}, Entry{}, services.Wrap(services.ErrInput, "corpus", "decode", path, err)
	}
	compact, err := json.Marshal(value)
	if err != nil {
		return vectorstore.Record{}, Entry{}, fmt.Errorf("encode %s: %w", path, err)
	}

	document := string(compact)
	id := documentID(value, path)
	vector, err := i.embedder.Embed(ctx, i.opts.EmbedModel, EmbeddingText(value, document))
	if err != nil {
		return vectorstore.Record{}, Entry{}, err
	}
	labels := retrieval.ExtractCandidates([]vectorstore.Example{{ID: id, Document: document}}, nil).Labels
	record := vectorstore.Record{
		ID:        id,
		Embedding: vector,
		Document:  document,
		Metadata: map[string]any{
			"source": filepath.Base(path),
		},
	}
	if len(labels) > 0 {
		record.Metadata["labels"] = strings.Join(labels, "; ")
	}
	return record, Entry{ID: id, Source: path, Labels: labels}, nil
}

// EmbeddingText chooses the text embedded for a stored document. Documents
// carrying a classification and motion report (combined run artifacts) are
// embedded with the same query layout used at retrieval time; an explicit
// "query" string wins; anything else is embedded verbatim.
func EmbeddingText(value any, document string) string {
	if query, ok := structured.String(lookup(value, "query")); ok {
		return query
	}
	var c classify.Result
	var report motion.Report
	if decodeInto(lookup(value, "classification"), &c) && decodeInto(lookup(value, "motion"), &report) {
		return retrieval.BuildQuery(c, report)
	}
	return document
}

func documentID(value any, path string) string {
	if id, ok := structured.String(lookup(value, "id")); ok {
		return strings.TrimSpace(id)
	}
	if id, ok := structured.String(lookup(value, "meta", "run_id")); ok {
		return strings.TrimSpace(id)
	}
	return textutil.SanitizeToken(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
}

func lookup(value any, path ...string) any {
	out, _ := structured.Lookup(value, path...)
	return out
}

func decodeInto(value any, target any) bool {
	if _, ok := structured.Object(value); !ok {
		return false
	}
	data, err := json.Marshal(value)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, target) == nil
}
