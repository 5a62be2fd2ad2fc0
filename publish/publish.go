// Package publish hands domain events to an external bus after the write
// that produced them has committed.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultSource is the event source every social event carries unless the
// event names its own.
const DefaultSource = "email.socialEvent"

var (
	// ErrPublishFailed is returned when the bus rejects or never receives an
	// event. It never undoes the triggering write.
	ErrPublishFailed = errors.New("socialtable: publish failed")

	// ErrMissingEventContext is returned when the publish step runs without
	// an event in the stash. It is a wiring error, not a transient one.
	ErrMissingEventContext = errors.New("socialtable: missing event context")
)

// Event is a domain event. Type becomes the bus detail type and Payload the
// detail document.
type Event struct {
	Type    string
	Source  string
	Payload any
}

// Ack identifies an accepted event on the bus.
type Ack struct {
	EventID string
}

// Publisher sends an event to a bus.
type Publisher interface {
	Publish(ctx context.Context, ev Event) (Ack, error)
}

// Envelope is the wire form shared by every bus. It matches the EventBridge
// event layout so a single consumer can read events from either transport.
type Envelope struct {
	ID         string          `json:"id"`
	Source     string          `json:"source"`
	DetailType string          `json:"detail-type"`
	Time       time.Time       `json:"time"`
	Detail     json.RawMessage `json:"detail"`
}

func (ev Event) validate() error {
	if ev.Type == "" {
		return fmt.Errorf("%w: event has no type", ErrMissingEventContext)
	}
	return nil
}

func (ev Event) detail() ([]byte, error) {
	if ev.Payload == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(ev.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s detail: %w", ErrPublishFailed, ev.Type, err)
	}
	return b, nil
}

func sourceOr(ev Event, fallback string) string {
	if ev.Source != "" {
		return ev.Source
	}
	if fallback != "" {
		return fallback
	}
	return DefaultSource
}
