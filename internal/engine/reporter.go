package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/mgrevis/gridplan/internal/network"
)

// reporter periodically re-runs a report network while its owning step
// executes, on its own cadence, independent of the step's iterations. Report
// failures are logged and never abort the step.
type reporter struct {
	done    chan struct{}
	stopped chan struct{}
}

// startReporter launches the background report loop. The goroutine wakes
// every interval, or early on stop, and runs the network once per wake; a
// stop wake still emits one final report before exiting.
func startReporter(ctx context.Context, net network.Network, interval time.Duration, logger *slog.Logger) *reporter {
	r := &reporter{
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	go func() {
		defer close(r.stopped)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
			case <-r.done:
			}
			if err := net.Run(ctx); err != nil {
				logger.WarnContext(ctx, "error running report network",
					slog.String("network", net.Name()),
					slog.String("error", err.Error()))
			}
			select {
			case <-r.done:
				return
			default:
			}
		}
	}()

	return r
}

// stop signals the report loop and blocks until it has exited. After stop
// returns, no report-network run can outlive the owning step.
func (r *reporter) stop() {
	close(r.done)
	<-r.stopped
}
