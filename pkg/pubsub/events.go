package pubsub

import (
	"context"
	"encoding/json"
	"time"
)

// Event names carried in the message attributes.
const (
	EventDocumentProcessed = "document.processed"
	EventDocumentDeleted   = "document.deleted"
)

// DocumentEvent is the payload published after an upload commits or a record
// is deleted.
type DocumentEvent struct {
	Event      string    `json:"event"`
	DocID      string    `json:"doc_id"`
	OwnerID    string    `json:"owner_id"`
	Warning    bool      `json:"warning"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher is the narrow surface services depend on; *Client satisfies
// it and nil publishers are tolerated by callers.
type EventPublisher interface {
	PublishDocumentEvent(ctx context.Context, event DocumentEvent) error
}

// PublishDocumentEvent marshals and publishes a lifecycle event.
func (c *Client) PublishDocumentEvent(ctx context.Context, event DocumentEvent) error {
	if c == nil || c.client == nil {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return c.Publish(ctx, data, map[string]string{"event": event.Event})
}
