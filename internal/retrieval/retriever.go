package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"filmroom/internal/classify"
	"filmroom/internal/config"
	"filmroom/internal/logging"
	"filmroom/internal/motion"
	"filmroom/internal/services"
	"filmroom/internal/vectorstore"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// Options configures a Retriever.
type Options struct {
	Collection string
	EmbedModel string
	TopK       int
	Defaults   []string
}

// OptionsFrom derives retriever options from configuration.
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		Collection: cfg.VectorStore.Collection,
		EmbedModel: cfg.Gemini.EmbedModel,
		TopK:       cfg.VectorStore.TopK,
		Defaults:   append([]string(nil), cfg.Candidates.Defaults...),
	}
}

// Result is the retrieval stage output.
type Result struct {
	Query      string                `json:"query"`
	Collection string                `json:"collection"`
	TopK       int                   `json:"top_k"`
	Examples   []vectorstore.Example `json:"examples"`
	Candidates CandidateSet          `json:"-"`
}

// Retriever embeds queries and reads nearest examples from one collection.
type Retriever struct {
	embedder Embedder
	store    vectorstore.Store
	opts     Options
	logger   *slog.Logger
}

// New constructs a Retriever.
func New(embedder Embedder, store vectorstore.Store, opts Options, logger *slog.Logger) *Retriever {
	if opts.TopK <= 0 {
		opts.TopK = 4
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "retrieval"),
	}
}

// TopK returns the configured neighbour count.
func (r *Retriever) TopK() int {
	return r.opts.TopK
}

// Retrieve builds the clip query, fetches the nearest examples and extracts
// the candidate set.
func (r *Retriever) Retrieve(ctx context.Context, c classify.Result, report motion.Report) (Result, error) {
	query := BuildQuery(c, report)
	examples, err := r.Search(ctx, query, r.opts.TopK)
	if err != nil {
		return Result{}, err
	}
	candidates := ExtractCandidates(examples, r.opts.Defaults)
	logger := logging.WithContext(ctx, r.logger)
	if candidates.Source == SourceDefaults {
		logging.WarnWithContext(logger, "no play labels in retrieved examples; using default candidates", "candidates_defaulted",
			logging.Int("examples", len(examples)),
			logging.String(logging.FieldImpact, "final narrative grounded on default play list"),
			logging.String(logging.FieldErrorHint, "ingest labelled examples with 'filmroom corpus add'"),
		)
	}
	logger.Info("retrieval complete",
		logging.Int("examples", len(examples)),
		logging.Int("candidates", len(candidates.Labels)),
		logging.String("candidate_source", candidates.Source),
	)
	return Result{
		Query:      query,
		Collection: r.opts.Collection,
		TopK:       r.opts.TopK,
		Examples:   examples,
		Candidates: candidates,
	}, nil
}

// Search embeds text and returns up to k nearest examples.
func (r *Retriever) Search(ctx context.Context, text string, k int) ([]vectorstore.Example, error) {
	stage := services.StageName(ctx)
	if strings.TrimSpace(text) == "" {
		return nil, services.Wrap(services.ErrInput, stage, "search", "empty query text", nil)
	}
	vector, err := r.embedder.Embed(ctx, r.opts.EmbedModel, text)
	if err != nil {
		return nil, err
	}
	collection, err := r.store.GetOrCreateCollection(ctx, r.opts.Collection)
	if err != nil {
		return nil, storeError(ctx, "open_collection", err)
	}
	examples, err := collection.Query(ctx, vector, k)
	if err != nil {
		return nil, storeError(ctx, "query", err)
	}
	if examples == nil {
		examples = []vectorstore.Example{}
	}
	return examples, nil
}

func storeError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, services.StageName(ctx), op, "run deadline exceeded", err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return services.Wrap(services.ErrExternalTool, services.StageName(ctx), op, "vector store", err)
}
