/*
Package log provides Context with logging metadata, as well as logging helper functions.
*/
package log

import (
	"context"
)

// unique type to prevent assignment.
type clogContextKeyType struct{}

// singleton value to identify our logging metadata in context
var clogContextKey = clogContextKeyType{}

// logging context is immutable after creation, so we don't have to worry about locking.
type metadata map[string]any

// WithLogValues returns a new context, adding in the provided values to the logging metadata
func WithLogValues(ctx context.Context, args ...string) context.Context {
	oldMetadata, _ := ctx.Value(clogContextKey).(metadata)
	var newMetadata = metadata{}
	for k, v := range oldMetadata {
		newMetadata[k] = v
	}
	for i := 1; i < len(args); i += 2 {
		newMetadata[args[i-1]] = args[i]
	}
	return context.WithValue(ctx, clogContextKey, newMetadata)
}

// JobID returns the request_id carried by ctx, if any.
func JobID(ctx context.Context) string {
	meta, _ := ctx.Value(clogContextKey).(metadata)
	id, _ := meta["request_id"].(string)
	return id
}

func LogCtx(ctx context.Context, message string, args ...any) {
	meta, _ := ctx.Value(clogContextKey).(metadata)
	requestID := JobID(ctx)
	allArgs := []any{}
	for k, v := range meta {
		// already present on the cached job logger
		if k == "request_id" {
			continue
		}
		allArgs = append(allArgs, k, v)
	}
	allArgs = append(allArgs, args...)
	if requestID == "" {
		LogNoRequestID(message, allArgs...)
	} else {
		Log(requestID, message, allArgs...)
	}
}
