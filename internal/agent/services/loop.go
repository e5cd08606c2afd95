package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/dmitrijs2005/edgekeeper/internal/logging"
)

// Outcome is the result of one tick.
type Outcome struct {
	Processed int
	Failed    int
	Err       error
}

// Worker is a periodic job.
type Worker interface {
	Name() string
	Tick(ctx context.Context) Outcome
}

// RunTick executes one tick with panic isolation. A panic is turned into an
// Outcome error carrying the stack.
func RunTick(ctx context.Context, w Worker) (out Outcome) {
	var pc panics.Catcher
	pc.Try(func() { out = w.Tick(ctx) })

	if r := pc.Recovered(); r != nil {
		return Outcome{Err: fmt.Errorf("%s tick panicked: %w", w.Name(), r.AsError())}
	}
	return out
}

// Run ticks w immediately and then every interval until ctx is cancelled.
//
// Cancellation is observed between ticks only: the tick itself runs on a
// context detached from ctx, so an in-flight upload or transaction finishes
// (bounded by its own timeouts) instead of being cut off.
func Run(ctx context.Context, w Worker, interval time.Duration, logger logging.Logger) {
	logger = logger.With("loop", w.Name())
	logger.Info(ctx, "loop started", "interval", interval.String())
	defer logger.Info(context.Background(), "loop stopped")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		report(ctx, logger, RunTick(context.WithoutCancel(ctx), w))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// a tick may have ended right as ctx was cancelled
		if ctx.Err() != nil {
			return
		}
	}
}

func report(ctx context.Context, logger logging.Logger, out Outcome) {
	switch {
	case out.Err != nil:
		logger.Error(ctx, "tick failed", "error", out.Err, "processed", out.Processed, "failed", out.Failed)
	case out.Failed > 0:
		logger.Warn(ctx, "tick finished with failures", "processed", out.Processed, "failed", out.Failed)
	case out.Processed > 0:
		logger.Debug(ctx, "tick finished", "processed", out.Processed)
	}
}
