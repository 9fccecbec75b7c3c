package services

import "context"

type contextKey int

const (
	runIDKey contextKey = iota
	stageKey
	requestIDKey
)

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func valueFrom(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}

// WithRunID records the analysis run identifier. Empty ids are ignored.
func WithRunID(ctx context.Context, id string) context.Context {
	return withValue(ctx, runIDKey, id)
}

func RunIDFromContext(ctx context.Context) (string, bool) {
	return valueFrom(ctx, runIDKey)
}

// WithStage records the pipeline stage a call runs under. Errors wrapped
// with StageName(ctx) inherit it.
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) {
	return valueFrom(ctx, stageKey)
}

// StageName returns the stage recorded on ctx, or "".
func StageName(ctx context.Context) string {
	stage, _ := StageFromContext(ctx)
	return stage
}

// WithRequestID records the per-run correlation id logged as correlation_id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	return valueFrom(ctx, requestIDKey)
}
