package engine

import "context"

type contextKey string

const runIDKey contextKey = "run_id"

// WithRunID attaches a run correlation ID to ctx, propagated to every
// worker and stage invocation spawned from it so log lines and metrics
// for one pipeline run can be grepped out of a shared process log.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext returns the run ID attached by WithRunID, if any.
func RunIDFromContext(ctx context.Context) (string, bool) {
	runID, ok := ctx.Value(runIDKey).(string)
	return runID, ok
}
