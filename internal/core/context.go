package core

import "context"

type contextKey string

const ctxKeyRunID contextKey = "run_id"

// ContextWithRunID tags ctx with the id of the run it belongs to.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRunID, id)
}

// RunIDFromContext returns the run id stored in ctx, or "".
func RunIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRunID).(string); ok {
		return v
	}
	return ""
}
