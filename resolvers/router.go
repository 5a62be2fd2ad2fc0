package resolvers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jacentio/socialtable/internal/metrics"
	"github.com/jacentio/socialtable/pipeline"
)

// HeaderCorrelationID is the request header carrying a caller-supplied
// correlation id.
const HeaderCorrelationID = "x-correlation-id"

// Invocation is the event of an AppSync direct Lambda resolver.
type Invocation struct {
	Arguments json.RawMessage                `json:"arguments"`
	Identity  *events.AppSyncCognitoIdentity `json:"identity"`
	Source    json.RawMessage                `json:"source"`
	Info      Info                           `json:"info"`
	Request   struct {
		Headers map[string]string `json:"headers"`
	} `json:"request"`
}

// Info names the field being resolved.
type Info struct {
	FieldName      string `json:"fieldName"`
	ParentTypeName string `json:"parentTypeName"`
}

// Operation returns the operation name: the field name for root types,
// "Parent.field" otherwise.
func (i Info) Operation() string {
	switch i.ParentTypeName {
	case "", "Query", "Mutation", "Subscription":
		return i.FieldName
	}
	return i.ParentTypeName + "." + i.FieldName
}

// Router dispatches resolver invocations to operations.
type Router struct {
	resolvers *Resolvers
	logger    zerolog.Logger
	metrics   metrics.Recorder
}

// NewRouter returns a Router over r. A nil recorder disables metrics.
func NewRouter(r *Resolvers, logger zerolog.Logger, rec metrics.Recorder) *Router {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Router{resolvers: r, logger: logger, metrics: rec}
}

// Handle resolves one field. Failures are returned as *Error.
func (rt *Router) Handle(ctx context.Context, inv Invocation) (any, error) {
	start := time.Now()
	op := inv.Info.Operation()

	logger := rt.logger.With().
		Str("correlationId", correlationID(ctx, inv)).
		Str("operation", op).
		Logger()
	ctx = logger.WithContext(ctx)

	out, err := rt.resolvers.Resolve(ctx, pipeline.Request{
		Operation: op,
		Arguments: inv.Arguments,
		Source:    inv.Source,
		Identity:  identity(inv.Identity),
	})

	typ := ErrorType(err)
	outcome := "ok"
	if err != nil {
		outcome = typ
	}
	rt.metrics.Count("resolver.request", 1, "operation:"+op, "outcome:"+outcome)
	rt.metrics.Timing("resolver.duration", time.Since(start), "operation:"+op)

	ev := logger.Info()
	if err != nil {
		ev = logger.Warn().Err(err).Str("errorType", typ)
	}
	ev.Int64("latencyMs", time.Since(start).Milliseconds()).Msg("resolver request completed")

	if err != nil {
		return nil, AsError(err)
	}
	return out, nil
}

func correlationID(ctx context.Context, inv Invocation) string {
	for k, v := range inv.Request.Headers {
		if strings.EqualFold(k, HeaderCorrelationID) && v != "" {
			return v
		}
	}
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	return uuid.NewString()
}

func identity(id *events.AppSyncCognitoIdentity) pipeline.Identity {
	if id == nil {
		return pipeline.Identity{}
	}
	return pipeline.Identity{Sub: id.Sub, Username: id.Username, Claims: id.Claims}
}
