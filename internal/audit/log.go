// Package audit emits structured audit events for security-relevant actions:
// registrations, logins, incident writes and push-channel lifecycle.
package audit

import (
	"context"
	"time"

	"reporta.org/internal/obs"
)

type contextKey string

const (
	requestIDKey contextKey = "audit.request_id"
	userKey      contextKey = "audit.user"
)

// WithRequestID stores the request id for later audit lines.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithUser stores the acting user's email for later audit lines.
func WithUser(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, userKey, email)
}

// RequestID returns the request id recorded on the context, if any.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// User returns the acting user's email recorded on the context, if any.
func User(ctx context.Context) string {
	v, _ := ctx.Value(userKey).(string)
	return v
}

// LogEvent writes one audit line. Fields are merged into the entry; the
// event name, timestamp, request id and user come from the call site and
// context.
func LogEvent(ctx context.Context, event string, fields map[string]any) {
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": "audit",
		"event": event,
	}
	if id := RequestID(ctx); id != "" {
		entry["request_id"] = id
	}
	if user := User(ctx); user != "" {
		entry["user"] = user
	}
	for k, v := range fields {
		entry[k] = v
	}
	obs.LogEntry(entry)
}
