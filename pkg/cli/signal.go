// Package cli provides shared plumbing for apirisk commands: interrupt
// handling and machine-readable output helpers.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apirisk/apirisk/pkg/duration"
	"github.com/apirisk/apirisk/pkg/ui"
)

// SignalContext returns a context cancelled on SIGINT/SIGTERM. The first
// signal cancels the context so the command can drain; a second signal
// within gracePeriod force-exits with code 1. A gracePeriod <= 0 uses
// duration.SignalGrace.
//
// Usage:
//
//	ctx, cancel := cli.SignalContext(0)
//	defer cancel()
func SignalContext(gracePeriod time.Duration) (context.Context, context.CancelFunc) {
	return signalContextWithNotifier(gracePeriod, nil, nil)
}

// signalContextWithNotifier is the internal implementation for testing.
// sigChan, if non-nil, overrides the real signal channel.
// exitFn, if non-nil, overrides os.Exit.
func signalContextWithNotifier(
	gracePeriod time.Duration,
	sigChan chan os.Signal,
	exitFn func(int),
) (context.Context, context.CancelFunc) {
	if gracePeriod <= 0 {
		gracePeriod = duration.SignalGrace
	}

	ctx, cancel := context.WithCancel(context.Background())

	ownChannel := sigChan == nil
	if ownChannel {
		sigChan = make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	}
	if exitFn == nil {
		exitFn = os.Exit
	}

	go func() {
		select {
		case <-sigChan:
			ui.PrintWarning("interrupt received, shutting down (press again to force)")
			cancel()

			// Wait for a second signal or the grace period.
			select {
			case <-sigChan:
				exitFn(1)
			case <-time.After(gracePeriod):
			}
		case <-ctx.Done():
		}
		if ownChannel {
			signal.Stop(sigChan)
		}
	}()

	return ctx, cancel
}
