package cli

import (
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func TestSignalContext_CancelOnInterrupt(t *testing.T) {
	sigChan := make(chan os.Signal, 1)
	ctx, cancel := signalContextWithNotifier(5*time.Second, sigChan, nil)
	defer cancel()

	sigChan <- os.Interrupt

	select {
	case <-ctx.Done():
		// Cancelled by the signal.
	case <-time.After(2 * time.Second):
		t.Fatal("context was not cancelled after signal")
	}
}

func TestSignalContext_ManualCancel(t *testing.T) {
	sigChan := make(chan os.Signal, 1)
	ctx, cancel := signalContextWithNotifier(5*time.Second, sigChan, nil)

	cancel()

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context was not cancelled after manual cancel")
	}
}

func TestSignalContext_SecondSignalExits(t *testing.T) {
	sigChan := make(chan os.Signal, 2)
	var exitCode atomic.Int32
	exitCode.Store(-1)

	exitFn := func(code int) {
		exitCode.Store(int32(code))
	}

	ctx, cancel := signalContextWithNotifier(5*time.Second, sigChan, exitFn)
	defer cancel()

	sigChan <- os.Interrupt

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context was not cancelled after first signal")
	}

	sigChan <- os.Interrupt

	deadline := time.After(2 * time.Second)
	for {
		if exitCode.Load() == 1 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("exitFn was not called after second signal")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestSignalContext_GracePeriodExpires(t *testing.T) {
	sigChan := make(chan os.Signal, 1)
	var exitCalled atomic.Bool

	exitFn := func(int) {
		exitCalled.Store(true)
	}

	_, cancel := signalContextWithNotifier(50*time.Millisecond, sigChan, exitFn)
	defer cancel()

	sigChan <- os.Interrupt

	time.Sleep(200 * time.Millisecond)

	if exitCalled.Load() {
		t.Error("exitFn should not run when no second signal arrives")
	}
}

func TestSignalContext_NoSignalContextUsable(t *testing.T) {
	sigChan := make(chan os.Signal, 1)
	ctx, cancel := signalContextWithNotifier(5*time.Second, sigChan, nil)
	defer cancel()

	select {
	case <-ctx.Done():
		t.Fatal("context should not be cancelled without signal or cancel")
	default:
	}
}
