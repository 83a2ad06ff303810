package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var shuttingDown atomic.Bool

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT received.
// Health handler returns 503 with status shutting-down while true.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown returns true if the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}

// Step is one stage of graceful shutdown. Timeout bounds Run; 0 uses the parent context only.
type Step struct {
	Name    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Shutdown sets the shutting-down flag and runs steps in order. A failing step is
// logged and does not stop later steps; all failures are returned joined.
func Shutdown(ctx context.Context, logger *zap.Logger, steps ...Step) error {
	SetShuttingDown(true)
	var errs []error
	for _, step := range steps {
		if step.Run == nil {
			continue
		}
		start := time.Now()
		err := runStep(ctx, step)
		if err != nil {
			logger.Error("shutdown step failed", zap.String("step", step.Name), zap.Duration("duration", time.Since(start)), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
			continue
		}
		logger.Info("shutdown step complete", zap.String("step", step.Name), zap.Duration("duration", time.Since(start)))
	}
	return errors.Join(errs...)
}

func runStep(ctx context.Context, step Step) error {
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}
	return step.Run(ctx)
}
