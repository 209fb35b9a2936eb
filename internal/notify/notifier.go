package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"reporta.org/internal/obs"
)

// ErrGone is returned by a Sender when the peer is confirmed disconnected.
// The notifier removes the directory entry and moves on.
var ErrGone = errors.New("notify: connection gone")

// Sender pushes a raw payload down one connection.
type Sender interface {
	Send(ctx context.Context, connectionID string, payload []byte) error
}

// Notifier fans events out to connections from the directory. Every delivery
// is best effort: no retries, no ordering guarantees across connections.
type Notifier struct {
	dir    Directory
	sender Sender
}

// New wires a directory to a sender.
func New(dir Directory, sender Sender) *Notifier {
	return &Notifier{dir: dir, sender: sender}
}

// Broadcast pushes the event to every connection.
func (n *Notifier) Broadcast(ctx context.Context, ev Event) {
	n.fanOut(ctx, ev, func(Connection) bool { return true })
}

// Notify pushes the event to every connection registered for email. Matching
// is case-insensitive; a user with several devices gets one copy each.
func (n *Notifier) Notify(ctx context.Context, email string, ev Event) {
	target := strings.ToLower(strings.TrimSpace(email))
	if target == "" {
		return
	}
	n.fanOut(ctx, ev, func(c Connection) bool {
		return strings.ToLower(c.Email) == target
	})
}

func (n *Notifier) fanOut(ctx context.Context, ev Event, match func(Connection) bool) {
	payload, err := json.Marshal(ev)
	if err != nil {
		n.logFailure(ctx, ev.Action, "", fmt.Errorf("marshal event: %w", err))
		return
	}

	conns, err := n.dir.List(ctx)
	if err != nil {
		n.logFailure(ctx, ev.Action, "", fmt.Errorf("list connections: %w", err))
		return
	}

	for _, c := range conns {
		if !match(c) {
			continue
		}
		err := n.sender.Send(ctx, c.ID, payload)
		switch {
		case err == nil:
			obs.ObserveNotification(ev.Action, "delivered")
		case errors.Is(err, ErrGone):
			obs.ObserveNotification(ev.Action, "pruned")
			if rmErr := n.dir.Remove(ctx, c.ID); rmErr != nil && !errors.Is(rmErr, ErrConnNotFound) {
				n.logFailure(ctx, ev.Action, c.ID, rmErr)
			}
		default:
			obs.ObserveNotification(ev.Action, "failed")
			n.logFailure(ctx, ev.Action, c.ID, err)
		}
	}
}

func (n *Notifier) logFailure(_ context.Context, action, connID string, err error) {
	entry := map[string]any{
		"ts":     time.Now().UTC().Format(time.RFC3339Nano),
		"level":  "warn",
		"msg":    "notification delivery failed",
		"action": action,
		"error":  err.Error(),
	}
	if connID != "" {
		entry["connection_id"] = connID
	}
	obs.LogEntry(entry)
}
