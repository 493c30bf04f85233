// Package messaging defines the event publishing contract used by the service.
package messaging

import (
	"context"
)

type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

// Identifiable is implemented by events that carry a unique ID usable for broker-side deduplication.
type Identifiable interface {
	EventID() string
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoopPublisher drops every event. It is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error {
	return nil
}
