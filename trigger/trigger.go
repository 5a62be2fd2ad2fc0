// Package trigger starts workflows for domain events delivered by EventBridge
// or SQS.
package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	"github.com/jacentio/socialtable/internal/metrics"
)

// ErrMalformedEvent is returned for a queued message that is not an event
// envelope.
var ErrMalformedEvent = errors.New("trigger: malformed event")

// maxExecutionName is the Step Functions limit on execution names.
const maxExecutionName = 80

// Rule routes events with a given source and detail type to a state machine.
type Rule struct {
	Source          string `yaml:"source" validate:"required"`
	DetailType      string `yaml:"detailType" validate:"required"`
	StateMachineARN string `yaml:"stateMachineArn" validate:"required"`
}

// Matches reports whether an event with source and detailType is routed by r.
func (r Rule) Matches(source, detailType string) bool {
	return r.Source == source && r.DetailType == detailType
}

// Starter starts one workflow execution. Starting an execution under a name
// already used for the same input succeeds without starting another.
type Starter interface {
	Start(ctx context.Context, stateMachineARN, name string, input json.RawMessage) error
}

// Handler starts a workflow for every event matching one of its rules.
type Handler struct {
	starter Starter
	rules   []Rule
	logger  zerolog.Logger
	metrics metrics.Recorder
}

// NewHandler creates a handler. A nil recorder disables metrics.
func NewHandler(starter Starter, rules []Rule, logger zerolog.Logger, rec metrics.Recorder) *Handler {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Handler{
		starter: starter,
		rules:   append([]Rule(nil), rules...),
		logger:  logger,
		metrics: rec,
	}
}

// HandleEventBridge processes an event delivered by an EventBridge rule.
// An error makes the platform retry the delivery.
func (h *Handler) HandleEventBridge(ctx context.Context, ev events.CloudWatchEvent) error {
	return h.dispatch(ctx, ev)
}

// HandleSQS processes a batch of queued event envelopes and reports the
// messages that failed so that only those are redelivered.
func (h *Handler) HandleSQS(ctx context.Context, batch events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, msg := range batch.Records {
		var ev events.CloudWatchEvent
		err := json.Unmarshal([]byte(msg.Body), &ev)
		if err != nil {
			err = fmt.Errorf("%w: message %s: %w", ErrMalformedEvent, msg.MessageId, err)
		} else {
			err = h.dispatch(ctx, ev)
		}
		if err != nil {
			h.logger.Error().Err(err).Str("messageId", msg.MessageId).Msg("failed to process message")
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: msg.MessageId,
			})
		}
	}
	return resp, nil
}

// Handle accepts either an EventBridge event or an SQS batch, telling them
// apart by the SQS "Records" list.
func (h *Handler) Handle(ctx context.Context, raw json.RawMessage) (any, error) {
	var probe struct {
		Records json.RawMessage `json:"Records"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if len(probe.Records) > 0 {
		var batch events.SQSEvent
		if err := json.Unmarshal(raw, &batch); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
		}
		return h.HandleSQS(ctx, batch)
	}
	var ev events.CloudWatchEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	return nil, h.HandleEventBridge(ctx, ev)
}

func (h *Handler) dispatch(ctx context.Context, ev events.CloudWatchEvent) error {
	log := h.logger.With().
		Str("eventId", ev.ID).
		Str("source", ev.Source).
		Str("detailType", ev.DetailType).
		Logger()

	input := ev.Detail
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}

	matched := 0
	for _, rule := range h.rules {
		if !rule.Matches(ev.Source, ev.DetailType) {
			continue
		}
		matched++

		name := ExecutionName(ev.DetailType, ev.ID)
		start := time.Now()
		err := h.starter.Start(ctx, rule.StateMachineARN, name, input)
		h.metrics.Timing("trigger.start.duration", time.Since(start), "detailType:"+ev.DetailType)
		if err != nil {
			h.metrics.Count("trigger.start", 1, "detailType:"+ev.DetailType, "outcome:failed")
			return fmt.Errorf("start %s for event %s: %w", rule.StateMachineARN, ev.ID, err)
		}
		h.metrics.Count("trigger.start", 1, "detailType:"+ev.DetailType, "outcome:ok")
		log.Info().Str("stateMachine", rule.StateMachineARN).Str("execution", name).Msg("workflow started")
	}

	if matched == 0 {
		log.Debug().Msg("no rule matches event")
	}
	return nil
}

// ExecutionName derives a deterministic execution name from the event, so
// that redelivered events map onto the same execution.
func ExecutionName(detailType, eventID string) string {
	name := sanitize(detailType) + "-" + sanitize(eventID)
	if len(name) > maxExecutionName {
		name = name[len(name)-maxExecutionName:]
	}
	return name
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
