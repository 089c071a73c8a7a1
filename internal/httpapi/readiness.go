package httpapi

import "sync/atomic"

// ready latches true once the startup sequence (model load + credential
// cache liveness probe) has completed. /readyz reports it verbatim; unlike
// /healthz it can legitimately be false for a while after process start.
var ready atomic.Bool

// SetReady marks the process ready or not-ready for /readyz. Call once at
// the end of the startup sequence; call with false first if a later health
// check (e.g. losing the model) should take the process out of rotation.
func SetReady(v bool) { ready.Store(v) }

// Ready reports the current readiness latch.
func Ready() bool { return ready.Load() }
