package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/aws/smithy-go"
)

// EventBridgeAPI is the subset of the EventBridge client used here.
type EventBridgeAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridge publishes to an event bus.
type EventBridge struct {
	client EventBridgeAPI
	bus    string
	source string
}

// NewEventBridge returns a publisher for bus. An empty source means
// DefaultSource.
func NewEventBridge(client EventBridgeAPI, bus, source string) *EventBridge {
	return &EventBridge{client: client, bus: bus, source: source}
}

func (p *EventBridge) Publish(ctx context.Context, ev Event) (Ack, error) {
	if err := ev.validate(); err != nil {
		return Ack{}, err
	}
	detail, err := ev.detail()
	if err != nil {
		return Ack{}, err
	}

	out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{{
			EventBusName: aws.String(p.bus),
			Source:       aws.String(sourceOr(ev, p.source)),
			DetailType:   aws.String(ev.Type),
			Detail:       aws.String(string(detail)),
		}},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return Ack{}, fmt.Errorf("%w: eventbridge %s: %w", ErrPublishFailed, apiErr.ErrorCode(), err)
		}
		return Ack{}, fmt.Errorf("%w: eventbridge: %w", ErrPublishFailed, err)
	}
	if out.FailedEntryCount > 0 || len(out.Entries) == 0 {
		var code, msg string
		if len(out.Entries) > 0 {
			code, msg = aws.ToString(out.Entries[0].ErrorCode), aws.ToString(out.Entries[0].ErrorMessage)
		}
		return Ack{}, fmt.Errorf("%w: eventbridge rejected %s: %s %s", ErrPublishFailed, ev.Type, code, msg)
	}
	return Ack{EventID: aws.ToString(out.Entries[0].EventId)}, nil
}
