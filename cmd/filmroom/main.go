package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"filmroom/internal/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmd := newRootCommand()
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, describeError(err))
		}
		os.Exit(1)
	}
}

// describeError prefixes failures that carry a stage with the stage name and
// error kind so callers can tell where a run stopped.
func describeError(err error) string {
	detail := services.Details(err)
	if detail.Stage == "" {
		return err.Error()
	}
	return fmt.Sprintf("%s failed [%s]: %v", detail.Stage, detail.Kind, err)
}
