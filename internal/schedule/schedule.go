package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/cronexpr"
)

// RunAt executes a function asynchronously at runAt. The returned stop
// function prevents a run that has not started yet and reports whether it did.
func RunAt(ctx context.Context, runAt time.Time, execute func(ctx context.Context)) (stop func() bool) {
	ctx, cancel := context.WithCancel(ctx)
	timer := time.AfterFunc(max(time.Until(runAt), 0), func() {
		defer cancel()
		if ctx.Err() != nil {
			return
		}
		execute(ctx)
	})
	return func() bool {
		stopped := timer.Stop()
		if stopped {
			cancel()
		}
		return stopped
	}
}

// Every runs execute at each time matched by the cron expression until ctx
// is done. Runs never overlap; a slow run delays the next one.
func Every(ctx context.Context, cron string, execute func(ctx context.Context)) error {
	expr, err := cronexpr.Parse(cron)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	go func() {
		for {
			next := expr.Next(time.Now())
			if next.IsZero() {
				slog.Warn("cron expression has no upcoming run times", "cron", cron)
				return
			}

			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				execute(ctx)
			}
		}
	}()
	return nil
}
