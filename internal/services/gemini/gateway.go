package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"mime"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"filmroom/internal/config"
	"filmroom/internal/logging"
	"filmroom/internal/services"
	"filmroom/internal/structured"
)

const (
	defaultRetryAttempts  = 5
	defaultRetryBaseDelay = 600 * time.Millisecond
	defaultRetryMaxDelay  = 8 * time.Second
	defaultMultiplier     = 1.7
	defaultJitterFraction = 0.35
	defaultParseAttempts  = 2
	defaultPollInterval   = time.Second
	defaultPollCeiling    = 90 * time.Second
	defaultConcurrency    = 3
)

// StrictJSONInstruction is appended to structured-output prompts after a
// reply fails to decode.
const StrictJSONInstruction = "Return ONLY valid JSON. No markdown. No extra text. No trailing commas."

// Config captures the gateway's retry and polling policy.
type Config struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	Multiplier        float64
	JitterFraction    float64
	ParseAttempts     int
	PollInterval      time.Duration
	PollCeiling       time.Duration
	UploadConcurrency int
}

// ConfigFrom derives gateway policy from application configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		MaxAttempts:       cfg.Retry.MaxAttempts,
		BaseDelay:         cfg.BackoffBase(),
		MaxDelay:          cfg.BackoffMax(),
		Multiplier:        cfg.Retry.Multiplier,
		JitterFraction:    cfg.Retry.JitterFraction,
		ParseAttempts:     cfg.Retry.ParseAttempts,
		PollInterval:      cfg.PollInterval(),
		PollCeiling:       cfg.PollCeiling(),
		UploadConcurrency: cfg.Upload.Concurrency,
	}
}

// Gateway invokes the model service with bounded retry and readiness polling.
type Gateway struct {
	backend Backend
	cfg     Config
	logger  *slog.Logger
	sleeper func(time.Duration)
	jitter  func(limit time.Duration) time.Duration
	now     func() time.Time
}

// Option customizes the gateway.
type Option func(*Gateway)

// WithLogger sets the gateway logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithSleeper overrides how retry and poll sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(g *Gateway) {
		g.sleeper = sleeper
	}
}

// WithJitter overrides the jitter source. The function receives the maximum
// jitter and returns a value in [0, limit].
func WithJitter(jitter func(limit time.Duration) time.Duration) Option {
	return func(g *Gateway) {
		g.jitter = jitter
	}
}

// WithClock overrides the wall clock used for the readiness ceiling.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// New constructs a Gateway around backend.
func New(backend Backend, cfg Config, opts ...Option) *Gateway {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultRetryAttempts
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = defaultRetryBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultRetryMaxDelay
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = defaultMultiplier
	}
	if cfg.JitterFraction < 0 {
		cfg.JitterFraction = defaultJitterFraction
	}
	if cfg.ParseAttempts <= 0 {
		cfg.ParseAttempts = defaultParseAttempts
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.PollCeiling <= 0 {
		cfg.PollCeiling = defaultPollCeiling
	}
	if cfg.UploadConcurrency <= 0 {
		cfg.UploadConcurrency = defaultConcurrency
	}
	g := &Gateway{
		backend: backend,
		cfg:     cfg,
		jitter:  uniformJitter,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.NewComponentLogger(g.logger, "gemini")
	return g
}

func uniformJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(limit) + 1))
}

// Generate issues a text generation call and returns the trimmed reply.
func (g *Gateway) Generate(ctx context.Context, model string, parts []Part) (string, error) {
	return g.generate(ctx, GenerateRequest{Model: model, Parts: parts})
}

func (g *Gateway) generate(ctx context.Context, req GenerateRequest) (string, error) {
	var text string
	err := g.withRetry(ctx, "generate "+req.Model, func(ctx context.Context) error {
		out, err := g.backend.Generate(ctx, req)
		if err != nil {
			return err
		}
		text = strings.TrimSpace(out)
		return nil
	})
	return text, err
}

// GenerateJSON issues a structured-output call and decodes the reply into
// target. When the reply does not decode, the call is re-issued with
// StrictJSONInstruction appended, up to the configured parse attempts. The raw
// text of the successful reply is returned.
func (g *Gateway) GenerateJSON(ctx context.Context, model string, parts []Part, target any) (string, error) {
	attempts := g.cfg.ParseAttempts
	current := append([]Part(nil), parts...)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		raw, err := g.generate(ctx, GenerateRequest{Model: model, Parts: current, JSON: true})
		if err != nil {
			return "", err
		}
		lastErr = DecodeJSON(raw, target)
		if lastErr == nil {
			return raw, nil
		}
		if attempt < attempts {
			g.contextLogger(ctx).Warn("structured reply did not decode; retrying with strict instruction",
				logging.String(logging.FieldEventType, "parse_retry"),
				logging.String("model", model),
				logging.Int("attempt", attempt),
				logging.Error(lastErr),
			)
			current = append(current, TextPart(StrictJSONInstruction))
		}
	}
	return "", services.Wrap(services.ErrMalformedResponse, services.StageName(ctx), "generate_json",
		fmt.Sprintf("%s reply not valid JSON after %d attempts", model, attempts), lastErr)
}

var embeddingStrategies = []structured.Strategy[[]float32]{
	{Name: "embeddings[0].values", Extract: func(v any) ([]float32, bool) {
		values, ok := structured.Lookup(v, "embeddings", "0", "values")
		if !ok {
			return nil, false
		}
		return structured.Float32s(values)
	}},
	{Name: "embedding.values", Extract: func(v any) ([]float32, bool) {
		values, ok := structured.Lookup(v, "embedding", "values")
		if !ok {
			return nil, false
		}
		return structured.Float32s(values)
	}},
	{Name: "values", Extract: func(v any) ([]float32, bool) {
		values, ok := structured.Lookup(v, "values")
		if !ok {
			return nil, false
		}
		return structured.Float32s(values)
	}},
	{Name: "bare vector", Extract: structured.Float32s},
}

// Embed returns the embedding vector for text.
func (g *Gateway) Embed(ctx context.Context, model, text string) ([]float32, error) {
	var raw any
	err := g.withRetry(ctx, "embed "+model, func(ctx context.Context) error {
		out, err := g.backend.Embed(ctx, model, text)
		if err != nil {
			return err
		}
		raw = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	vector, strategy, err := structured.FirstMatch(raw, embeddingStrategies)
	if err != nil {
		return nil, services.Wrap(services.ErrMalformedResponse, services.StageName(ctx), "embed", "could not parse embedding response", err)
	}
	g.contextLogger(ctx).Debug("embedding extracted",
		logging.String("model", model),
		logging.String("strategy", strategy),
		logging.Int("dimensions", len(vector)),
	)
	return vector, nil
}

// Upload submits the file at path and waits until the service reports it
// ACTIVE. Uploads are not retried: re-submission after a partial upload has no
// defined semantics.
func (g *Gateway) Upload(ctx context.Context, path string) (File, error) {
	mimeType := mimeTypeFor(path)
	file, err := g.backend.Upload(ctx, path, mimeType)
	if err != nil {
		if ctxErr := contextError(ctx, "upload"); ctxErr != nil {
			return File{}, ctxErr
		}
		return File{}, services.Wrap(services.ErrUploadReadiness, services.StageName(ctx), "upload",
			fmt.Sprintf("submit %s", filepath.Base(path)), err)
	}
	if file.MIMEType == "" {
		file.MIMEType = mimeType
	}
	return g.AwaitActive(ctx, file)
}

var mediaTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

func mimeTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mimeType, ok := mediaTypes[ext]; ok {
		return mimeType
	}
	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		return mimeType
	}
	return "application/octet-stream"
}

// UploadAll uploads paths with bounded parallelism and returns the ACTIVE
// handles in input order. The first failure cancels the remaining uploads.
func (g *Gateway) UploadAll(ctx context.Context, paths []string) ([]File, error) {
	files := make([]File, len(paths))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(g.cfg.UploadConcurrency)
	for i, path := range paths {
		group.Go(func() error {
			file, err := g.Upload(groupCtx, path)
			if err != nil {
				return err
			}
			files[i] = file
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// ReadinessState is the upload lifecycle observed by AwaitActive.
type ReadinessState string

const (
	StateSubmitted ReadinessState = "SUBMITTED"
	StateActive    ReadinessState = "ACTIVE"
	StateFailed    ReadinessState = "FAILED"
	StateTimeout   ReadinessState = "TIMEOUT"
)

// ReadinessError reports a terminal non-ACTIVE outcome.
type ReadinessError struct {
	File   string
	State  ReadinessState
	Polls  int
	Waited time.Duration
	Reason string
}

func (e *ReadinessError) Error() string {
	msg := fmt.Sprintf("file %s ended %s after %d polls (%s)", e.File, e.State, e.Polls, e.Waited.Round(time.Millisecond))
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// AwaitActive polls file until ACTIVE, FAILED, or the poll ceiling elapses.
func (g *Gateway) AwaitActive(ctx context.Context, file File) (File, error) {
	logger := g.contextLogger(ctx).With(logging.String("file", file.Name))
	start := g.now()
	polls := 0
	current := file
	for {
		switch current.State {
		case FileStateActive:
			logger.Debug("upload active",
				logging.String(logging.FieldEventType, "upload_active"),
				logging.Int("polls", polls),
			)
			return current, nil
		case FileStateFailed:
			return File{}, g.readinessFailure(ctx, &ReadinessError{
				File: file.Name, State: StateFailed, Polls: polls, Waited: g.now().Sub(start), Reason: current.Error,
			})
		}

		if g.now().Sub(start) >= g.cfg.PollCeiling {
			return File{}, g.readinessFailure(ctx, &ReadinessError{
				File: file.Name, State: StateTimeout, Polls: polls, Waited: g.now().Sub(start),
			})
		}
		if err := g.sleep(ctx, g.cfg.PollInterval); err != nil {
			return File{}, contextError(ctx, "await_active")
		}
		polls++
		next, err := g.backend.GetFile(ctx, file.Name)
		if err != nil {
			if ctxErr := contextError(ctx, "await_active"); ctxErr != nil {
				return File{}, ctxErr
			}
			if _, transient := transientRetryAfter(err); transient {
				logger.Debug("readiness poll failed; polling again", logging.Error(err))
				continue
			}
			return File{}, services.Wrap(services.ErrUploadReadiness, services.StageName(ctx), "await_active",
				"poll "+file.Name, err)
		}
		current = next
	}
}

func (g *Gateway) readinessFailure(ctx context.Context, err *ReadinessError) error {
	return services.Wrap(services.ErrUploadReadiness, services.StageName(ctx), "await_active", "", err)
}

// withRetry runs call until it succeeds, fails non-transiently, or exhausts
// the attempt cap. No sleep follows the final attempt.
func (g *Gateway) withRetry(ctx context.Context, op string, call func(context.Context) error) error {
	attempts := g.cfg.MaxAttempts
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := contextError(ctx, op); err != nil {
			return err
		}
		err := call(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := contextError(ctx, op); ctxErr != nil {
			return ctxErr
		}
		retryAfter, transient := transientRetryAfter(err)
		if !transient {
			return services.Wrap(services.ErrRejected, services.StageName(ctx), op, "non-transient failure", err)
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		delay := g.backoffDelay(attempt)
		if retryAfter > delay {
			delay = min(retryAfter, g.cfg.MaxDelay)
		}
		g.contextLogger(ctx).Warn("transient model service error; retrying",
			logging.String(logging.FieldEventType, "retry_scheduled"),
			logging.String("operation", op),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", attempts),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
		if err := g.sleep(ctx, delay); err != nil {
			return contextError(ctx, op)
		}
	}
	return services.Wrap(services.ErrTransient, services.StageName(ctx), op,
		fmt.Sprintf("failed after %d attempts", attempts), lastErr)
}

// backoffDelay returns the sleep before attempt+1: base*multiplier^(attempt-1)
// capped at MaxDelay, plus jitter of up to JitterFraction of that delay, with
// the sum capped again.
func (g *Gateway) backoffDelay(attempt int) time.Duration {
	if g.cfg.BaseDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	scaled := float64(g.cfg.BaseDelay) * math.Pow(g.cfg.Multiplier, float64(attempt-1))
	delay := time.Duration(math.Min(scaled, float64(g.cfg.MaxDelay)))
	jitter := g.jitter(time.Duration(float64(delay) * g.cfg.JitterFraction))
	return min(delay+max(jitter, 0), g.cfg.MaxDelay)
}

func transientRetryAfter(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Code == http.StatusRequestTimeout,
			statusErr.Code == http.StatusTooManyRequests,
			statusErr.Code >= http.StatusInternalServerError:
			return statusErr.RetryAfter, true
		default:
			return 0, false
		}
	}
	if errors.Is(err, services.ErrTransient) {
		return 0, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return 0, true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return 0, true
	}
	return 0, false
}

func (g *Gateway) sleep(ctx context.Context, delay time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if delay <= 0 {
		return nil
	}
	if g.sleeper != nil {
		g.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// contextError converts a done context into a classified error.
func contextError(ctx context.Context, op string) error {
	err := ctx.Err()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, services.StageName(ctx), op, "run deadline exceeded", err)
	default:
		return err
	}
}

func (g *Gateway) contextLogger(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, g.logger)
}
