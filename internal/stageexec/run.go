package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"filmroom/internal/logging"
	"filmroom/internal/services"
)

// Policy decides what a stage failure does to the run.
type Policy int

const (
	// HardFail aborts the run with the stage error.
	HardFail Policy = iota
	// SoftFail substitutes the stage's fallback value and continues.
	SoftFail
)

// Stage statuses recorded in run metadata.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusFailed   = "failed"
)

// Stage is one step of a pipeline run.
type Stage[T any] struct {
	Name     string
	Policy   Policy
	Execute  func(context.Context) (T, error)
	Fallback func(error) T
}

// Outcome is the explicit result of a stage: either the produced value, or
// the fallback value together with the failure that triggered it.
type Outcome[T any] struct {
	Value   T
	Status  string
	Failure error
	Elapsed time.Duration
}

// Degraded reports whether the value is a fallback.
func (o Outcome[T]) Degraded() bool {
	return o.Status == StatusDegraded
}

// Run executes stage under a context tagged with the stage name and logs the
// lifecycle. Hard failures are returned with the stage recorded on the error.
// Run deadline and cancellation always abort, even for soft stages.
func Run[T any](ctx context.Context, logger *slog.Logger, stage Stage[T]) (Outcome[T], error) {
	if stage.Execute == nil {
		return Outcome[T]{}, fmt.Errorf("stage handler unavailable: %s", stage.Name)
	}
	if stage.Policy == SoftFail && stage.Fallback == nil {
		return Outcome[T]{}, fmt.Errorf("soft-fail stage %s has no fallback", stage.Name)
	}

	stageCtx := services.WithStage(ctx, stage.Name)
	stageLogger := logging.WithContext(stageCtx, logger)
	stageLogger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	start := time.Now()
	value, err := stage.Execute(stageCtx)
	elapsed := time.Since(start)
	if err == nil {
		stageLogger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.Duration("elapsed", elapsed),
		)
		return Outcome[T]{Value: value, Status: StatusOK, Elapsed: elapsed}, nil
	}

	err = attachStage(stageCtx, stage.Name, err)
	if stage.Policy == SoftFail && ctx.Err() == nil {
		logging.WarnWithContext(stageLogger, "stage degraded", "stage_degraded",
			logging.Duration("elapsed", elapsed),
			logging.String("error_kind", services.Kind(err)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "run continues with fallback values"),
		)
		return Outcome[T]{Value: stage.Fallback(err), Status: StatusDegraded, Failure: err, Elapsed: elapsed}, nil
	}

	detail := services.Details(err)
	stageLogger.Error("stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("error_kind", detail.Kind),
		logging.String("error_message", strings.TrimSpace(detail.Message)),
		logging.Duration("elapsed", elapsed),
		logging.Error(err),
	)
	return Outcome[T]{Status: StatusFailed, Failure: err, Elapsed: elapsed}, err
}

// attachStage ensures err carries the originating stage. Errors already
// classified keep their marker; anything else is marked internal, except
// context errors which keep their own classification.
func attachStage(ctx context.Context, name string, err error) error {
	var stageErr *services.StageError
	if errors.As(err, &stageErr) && stageErr.Stage != "" {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, name, "", "run deadline exceeded", err)
	case stageErr != nil && error(stageErr) == err:
		tagged := *stageErr
		tagged.Stage = name
		return &tagged
	case stageErr != nil:
		return services.Wrap(stageErr.Marker, name, stageErr.Operation, stageErr.Message, err)
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		return services.Wrap(services.ErrInternal, name, "", "run canceled", err)
	default:
		return services.Wrap(services.ErrInternal, name, "", "", err)
	}
}
