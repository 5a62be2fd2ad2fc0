// Package resolvers implements the social API operations as pipelines over
// the data gateway and the event publisher.
package resolvers

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/rs/zerolog"

	"github.com/jacentio/socialtable/internal/metrics"
	"github.com/jacentio/socialtable/keys"
	"github.com/jacentio/socialtable/pipeline"
	"github.com/jacentio/socialtable/publish"
	"github.com/jacentio/socialtable/store"
)

// Field resolvers are addressed as "Parent.field".
const (
	OpPostUser    = "Post.user"
	OpCommentUser = "Comment.user"
)

// Resolvers holds one pipeline per operation.
type Resolvers struct {
	gw      store.Gateway
	pub     publish.Publisher
	logger  zerolog.Logger
	metrics metrics.Recorder
	now     func() time.Time
	newID   func() string

	pipelines map[string]*pipeline.Pipeline
}

// Option configures Resolvers.
type Option func(*Resolvers)

func WithLogger(l zerolog.Logger) Option {
	return func(r *Resolvers) { r.logger = l }
}

func WithMetrics(m metrics.Recorder) Option {
	return func(r *Resolvers) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithClock overrides the time source used for createdOn and updatedOn.
func WithClock(now func() time.Time) Option {
	return func(r *Resolvers) { r.now = now }
}

// WithIDs overrides the identifier generator.
func WithIDs(newID func() string) Option {
	return func(r *Resolvers) { r.newID = newID }
}

// New builds every operation pipeline.
func New(gw store.Gateway, pub publish.Publisher, opts ...Option) *Resolvers {
	r := &Resolvers{
		gw:      gw,
		pub:     pub,
		logger:  zerolog.Nop(),
		metrics: metrics.Nop{},
		now:     time.Now,
		newID:   keys.NewID,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.pipelines = make(map[string]*pipeline.Pipeline)
	r.registerUsers()
	r.registerPosts()
	r.registerComments()
	r.registerFollows()
	return r
}

func (r *Resolvers) register(name string, steps ...pipeline.Step) {
	if _, dup := r.pipelines[name]; dup {
		panic(fmt.Sprintf("resolvers: duplicate operation %q", name))
	}
	r.pipelines[name] = pipeline.New(name, steps,
		pipeline.WithLogger(r.logger), pipeline.WithMetrics(r.metrics))
}

// Pipeline returns the pipeline serving op.
func (r *Resolvers) Pipeline(op string) (*pipeline.Pipeline, bool) {
	p, ok := r.pipelines[op]
	return p, ok
}

// Operations lists the served operation names, sorted.
func (r *Resolvers) Operations() []string {
	ops := make([]string, 0, len(r.pipelines))
	for name := range r.pipelines {
		ops = append(ops, name)
	}
	sort.Strings(ops)
	return ops
}

// Resolve runs the pipeline named by req.Operation.
func (r *Resolvers) Resolve(ctx context.Context, req pipeline.Request) (any, error) {
	p, ok := r.pipelines[req.Operation]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, req.Operation)
	}
	return p.Run(ctx, req)
}

func (r *Resolvers) timestamp() int64 { return r.now().UnixMilli() }

func step(name string, run pipeline.StepFunc) pipeline.Step {
	return pipeline.Step{Name: name, Run: run}
}

func bind(pc *pipeline.Context, dst any) error {
	if err := pc.Request().Bind(dst); err != nil {
		return err
	}
	return check(dst)
}

func toItem(v any) (store.Item, error) {
	av, err := attributevalue.MarshalMap(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	return store.Item(av), nil
}

func fromItem[T any](item store.Item) (T, error) {
	var out T
	if err := attributevalue.UnmarshalMap(item, &out); err != nil {
		return out, fmt.Errorf("unmarshal %T: %w", out, err)
	}
	return out, nil
}

func fromItems[T any](items []store.Item) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, item := range items {
		v, err := fromItem[T](item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func toPage[T any](p store.Page) (Page[T], error) {
	items, err := fromItems[T](p.Items)
	if err != nil {
		return Page[T]{}, err
	}
	return Page[T]{Items: items, NextToken: p.Next}, nil
}

// first returns the first item of a single-item lookup, or nil.
func first[T any](p store.Page) (*T, error) {
	if len(p.Items) == 0 {
		return nil, nil
	}
	v, err := fromItem[T](p.Items[0])
	if err != nil {
		return nil, err
	}
	return &v, nil
}

type fieldsFunc func(pc *pipeline.Context) (keys.Fields, error)

// listStep queries pattern with the paging arguments and the key fields picked
// by fields. With stopWhenEmpty an empty page ends the pipeline early.
func listStep[T any](gw store.Gateway, name, pattern string, fields fieldsFunc, stopWhenEmpty bool) pipeline.Step {
	return step(name, func(ctx context.Context, pc *pipeline.Context) (pipeline.Outcome, error) {
		var args PageArgs
		if err := bind(pc, &args); err != nil {
			return pipeline.Outcome{}, err
		}
		var f keys.Fields
		if fields != nil {
			var err error
			if f, err = fields(pc); err != nil {
				return pipeline.Outcome{}, err
			}
		}
		p, err := gw.Query(ctx, pattern, f, args.Limit, args.NextToken)
		if err != nil {
			return pipeline.Outcome{}, err
		}
		page, err := toPage[T](p)
		if err != nil {
			return pipeline.Outcome{}, err
		}
		if stopWhenEmpty && len(page.Items) == 0 {
			return pipeline.Stop(Page[T]{Items: []T{}}), nil
		}
		return pipeline.Continue(page), nil
	})
}

// argField returns a fieldsFunc reading one required string argument.
func argField(arg, field string) fieldsFunc {
	return func(pc *pipeline.Context) (keys.Fields, error) {
		args := map[string]any{}
		if err := pc.Request().Bind(&args); err != nil {
			return nil, err
		}
		v, _ := args[arg].(string)
		if v == "" {
			return nil, invalid("%s is required", arg)
		}
		return keys.Fields{field: v}, nil
	}
}
