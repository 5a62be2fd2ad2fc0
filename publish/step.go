package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jacentio/socialtable/internal/metrics"
	"github.com/jacentio/socialtable/pipeline"
)

// Stash keys read and written by the publish step.
const (
	StashEvent = "event"
	StashAck   = "eventAck"
)

// StepName is the name of the publish step in every pipeline.
const StepName = "putEvents"

// NewStep returns the pipeline step that publishes the stashed event and
// passes the previous result through unchanged. A failed publish is logged
// and recorded but does not fail the pipeline; a missing event does.
func NewStep(p Publisher, rec metrics.Recorder) pipeline.Step {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return pipeline.Step{
		Name: StepName,
		Run: func(ctx context.Context, pc *pipeline.Context) (pipeline.Outcome, error) {
			ev, ok := pipeline.Get[Event](pc, StashEvent)
			if !ok {
				return pipeline.Outcome{}, fmt.Errorf("%w: no %q in stash", ErrMissingEventContext, StashEvent)
			}

			ack, err := p.Publish(ctx, ev)
			if errors.Is(err, ErrMissingEventContext) {
				return pipeline.Outcome{}, err
			}
			if err != nil {
				rec.Count("events.publish", 1, "eventType:"+ev.Type, "outcome:failed")
				zerolog.Ctx(ctx).Warn().Err(err).Str("eventType", ev.Type).Msg("event publish failed")
				return pipeline.Continue(pc.Prev), nil
			}

			rec.Count("events.publish", 1, "eventType:"+ev.Type, "outcome:ok")
			zerolog.Ctx(ctx).Debug().Str("eventType", ev.Type).Str("eventId", ack.EventID).Msg("event published")
			pc.Stash[StashAck] = ack
			return pipeline.Continue(pc.Prev), nil
		},
	}
}
