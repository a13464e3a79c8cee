package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/swiftdrop/delivery-gateway/pkg/redis"
)

// EnvelopeType is the message type the websocket edge dispatches on.
const EnvelopeType = "send_notification"

// Envelope is the wire format pushed to a recipient's group. CreatedAt is
// an ISO-8601 timestamp string, matching the durable notification row.
type Envelope struct {
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data"`
	CreatedAt string         `json:"created_at"`
}

func NewEnvelope(title, message string, data map[string]any, createdAt time.Time) Envelope {
	return Envelope{
		Type:      EnvelopeType,
		Title:     title,
		Message:   message,
		Data:      data,
		CreatedAt: createdAt.UTC().Format(time.RFC3339),
	}
}

// GroupForUser maps a user id to its logical broadcast group. The name is a
// public contract: the websocket edge subscribes each authenticated
// connection to exactly this group.
func GroupForUser(userID int64) string {
	return fmt.Sprintf("user_%d_notifications", userID)
}

// Router delivers best-effort pushes to whichever live connections are
// subscribed to a group. Publishing to a group nobody listens on is a
// silent no-op, not a failure.
type Router struct {
	adapter redis.RedisAdapter
}

func NewRouter(adapter redis.RedisAdapter) *Router {
	return &Router{adapter: adapter}
}

// Publish sends env to every current subscriber of group. The returned
// count is informational only; zero subscribers is success.
func (r *Router) Publish(ctx context.Context, group string, env Envelope) (int64, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return 0, fmt.Errorf("marshal envelope: %w", err)
	}
	n, err := r.adapter.Publish(group, payload)
	if err != nil {
		return 0, fmt.Errorf("publish to %s: %w", group, err)
	}
	return n, nil
}

// PublishToUser publishes env to the user's own group.
func (r *Router) PublishToUser(ctx context.Context, userID int64, env Envelope) (int64, error) {
	return r.Publish(ctx, GroupForUser(userID), env)
}

// Subscribe attaches to a group and decodes incoming envelopes. Used by the
// websocket edge after handshake auth, and by tests.
func (r *Router) Subscribe(ctx context.Context, group string) (<-chan Envelope, func() error) {
	sub := r.adapter.Subscribe(ctx, group)
	out := make(chan Envelope, 16)

	go func() {
		defer close(out)
		for msg := range sub.Messages() {
			var env Envelope
			if err := json.Unmarshal(msg.Payload, &env); err != nil {
				continue
			}
			select {
			case out <- env:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, sub.Close
}
