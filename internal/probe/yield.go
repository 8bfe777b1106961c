package probe

import (
	"context"
	"runtime"
)

// maybeRest is the cooperative suspension point SPEC_FULL.md §4.6 requires
// inside every loop that walks peers or telemetry. The original sidevm
// runtime is single-threaded and cooperative, so a yield there hands the
// CPU to the HTTP server and control-channel tasks; Go's scheduler is
// preemptive, so runtime.Gosched alone would be a no-op formality. What Go
// actually needs from this call site is a cancellation check, so maybeRest
// also reports whether the round has been cancelled, so the caller can
// unwind promptly — preserving the contract's intent (keep the rest of the
// runtime responsive) under a different scheduler.
func maybeRest(ctx context.Context) bool {
	runtime.Gosched()
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
