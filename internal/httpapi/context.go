package httpapi

import (
	"context"
)

// serverBaseCtx is a process-level context that can be canceled on shutdown.
// Defaults to Background if not set.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level base context used by handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// ShuttingDown reports whether the process-level base context has already
// been canceled, so new WebSocket upgrades can be refused during graceful
// shutdown instead of being accepted onto a server that's about to stop.
func ShuttingDown() bool {
	return serverBaseCtx.Err() != nil
}
