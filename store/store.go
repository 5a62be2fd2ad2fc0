package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"

	"github.com/jacentio/socialtable/keys"
)

const (
	maxBatchGetKeys  = 100
	maxTransactItems = 100
	batchGetBackoff  = 50 * time.Millisecond
)

// Gateway is the data access surface resolvers depend on. *Store implements
// it over DynamoDB; storetest.Memory implements it in memory.
type Gateway interface {
	Get(ctx context.Context, key keys.Key) (Item, error)
	Put(ctx context.Context, k keys.Keys, item Item, cond Condition) error
	PutAll(ctx context.Context, reqs []PutRequest) error
	Update(ctx context.Context, key keys.Key, ops Ops) (Item, error)
	Delete(ctx context.Context, key keys.Key) (Item, error)
	Query(ctx context.Context, pattern string, f keys.Fields, limit int32, cursor string) (Page, error)
	BatchGet(ctx context.Context, ks []keys.Key, opts BatchGetOptions) ([]Item, error)
	Codec() *keys.Codec
}

var _ Gateway = (*Store)(nil)

// Store is the data gateway over the single social table.
type Store struct {
	client  Client
	config  Config
	codec   *keys.Codec
	catalog *Catalog
	logger  zerolog.Logger
	sleep   func(context.Context, time.Duration) error
}

// New creates a new Store instance with the default catalog.
func New(client Client, config Config) *Store {
	return NewWithCatalog(client, config, NewCatalog())
}

// NewWithCatalog creates a new Store instance over a custom catalog.
func NewWithCatalog(client Client, config Config, catalog *Catalog) *Store {
	config.validate()
	return &Store{
		client:  client,
		config:  config,
		codec:   keys.NewCodec(config.CommentShards),
		catalog: catalog,
		logger:  zerolog.Nop(),
		sleep:   sleepCtx,
	}
}

// SetLogger sets the logger used for debug tracing of table calls.
func (s *Store) SetLogger(logger zerolog.Logger) {
	s.logger = logger.With().Str("component", "store").Str("table", s.config.TableName).Logger()
}

// Codec returns the key codec matching the store's shard configuration.
func (s *Store) Codec() *keys.Codec { return s.codec }

// Catalog returns the access pattern catalog.
func (s *Store) Catalog() *Catalog { return s.catalog }

// TableName returns the configured table.
func (s *Store) TableName() string { return s.config.TableName }

// Get reads a single item with strong consistency.
func (s *Store) Get(ctx context.Context, key keys.Key) (Item, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.config.TableName),
		Key:            keyAttrs(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, classify("get", err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return out.Item, nil
}

// Put writes item under k. The key and index attributes of k always replace
// whatever the item carries for them, so the two stay in lock-step.
func (s *Store) Put(ctx context.Context, k keys.Keys, item Item, cond Condition) error {
	in := &dynamodb.PutItemInput{
		TableName: aws.String(s.config.TableName),
		Item:      withKeys(k, item),
	}
	expr, err := conditionExpr(cond)
	if err != nil {
		return err
	}
	if expr != nil {
		in.ConditionExpression = expr.Condition()
		in.ExpressionAttributeNames = expr.Names()
	}

	_, err = s.client.PutItem(ctx, in)
	if err != nil {
		return classify("put "+string(k.Kind), err)
	}
	return nil
}

// PutAll writes every request in one transaction. Either all items are
// written or none are.
func (s *Store) PutAll(ctx context.Context, reqs []PutRequest) error {
	if len(reqs) == 0 {
		return nil
	}
	if len(reqs) > maxTransactItems {
		return validationf("put all: %d items exceeds the transaction limit of %d", len(reqs), maxTransactItems)
	}

	items := make([]types.TransactWriteItem, 0, len(reqs))
	for _, r := range reqs {
		put := &types.Put{
			TableName: aws.String(s.config.TableName),
			Item:      withKeys(r.Keys, r.Item),
		}
		expr, err := conditionExpr(r.Condition)
		if err != nil {
			return err
		}
		if expr != nil {
			put.ConditionExpression = expr.Condition()
			put.ExpressionAttributeNames = expr.Names()
		}
		items = append(items, types.TransactWriteItem{Put: put})
	}

	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return classify("put all", err)
}

// Delete removes the item under key and returns what was stored.
func (s *Store) Delete(ctx context.Context, key keys.Key) (Item, error) {
	out, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(s.config.TableName),
		Key:          keyAttrs(key),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return nil, classify("delete", err)
	}
	if len(out.Attributes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return out.Attributes, nil
}

// Query runs a catalog pattern and returns one page. limit <= 0 uses the
// pattern's page size; larger values are capped at MaxPageSize.
func (s *Store) Query(ctx context.Context, pattern string, f keys.Fields, limit int32, cursor string) (Page, error) {
	d, err := s.catalog.Resolve(pattern)
	if err != nil {
		return Page{}, err
	}
	pred, err := d.Predicate(f)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	limit = LimitFor(d, limit)

	var start map[string]types.AttributeValue
	if cursor != "" {
		c, err := DecodeCursor(cursor)
		if err != nil {
			return Page{}, err
		}
		if start, err = c.StartKey(d, pred.Partition); err != nil {
			return Page{}, err
		}
	}

	in, err := s.queryInput(d, pred)
	if err != nil {
		return Page{}, err
	}

	items := make([]Item, 0, limit)
	for {
		in.ExclusiveStartKey = start
		in.Limit = aws.Int32(limit - int32(len(items)))
		out, err := s.client.Query(ctx, in)
		if err != nil {
			return Page{}, classify("query "+pattern, err)
		}
		for _, it := range out.Items {
			items = append(items, it)
		}
		start = out.LastEvaluatedKey
		if len(start) == 0 || int32(len(items)) >= limit {
			break
		}
	}

	page := Page{Items: items}
	if len(start) > 0 {
		more, err := s.hasMore(ctx, in, start)
		if err != nil {
			return Page{}, err
		}
		if more {
			token, err := EncodeCursor(d.Pattern, start)
			if err != nil {
				return Page{}, fmt.Errorf("%w: %w", ErrValidation, err)
			}
			page.Next = &token
		}
	}

	s.logger.Debug().
		Str("pattern", pattern).
		Int("items", len(page.Items)).
		Bool("more", page.Next != nil).
		Msg("query page")
	return page, nil
}

func (s *Store) queryInput(d IndexDescriptor, pred Predicate) (*dynamodb.QueryInput, error) {
	kc := expression.Key(d.PartitionAttr).Equal(expression.Value(pred.Partition))
	switch d.SortOp {
	case SortEquals:
		kc = kc.And(expression.Key(d.SortAttr).Equal(expression.Value(pred.Sort)))
	case SortBeginsWith:
		kc = kc.And(expression.Key(d.SortAttr).BeginsWith(pred.Sort))
	}
	expr, err := expression.NewBuilder().WithKeyCondition(kc).Build()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrValidation, d.Pattern, err)
	}

	in := &dynamodb.QueryInput{
		TableName:                 aws.String(s.config.TableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(d.Direction == Ascending),
	}
	if d.Index != "" {
		in.IndexName = aws.String(d.Index)
	} else {
		in.ConsistentRead = aws.Bool(true)
	}
	return in, nil
}

// hasMore probes past a full page so that a cursor is only handed out when at
// least one further item exists.
func (s *Store) hasMore(ctx context.Context, in *dynamodb.QueryInput, start map[string]types.AttributeValue) (bool, error) {
	probe := *in
	probe.ExclusiveStartKey = start
	probe.Limit = aws.Int32(1)
	out, err := s.client.Query(ctx, &probe)
	if err != nil {
		return false, classify("query probe", err)
	}
	return len(out.Items) > 0, nil
}

// BatchGet reads many items by key. Duplicate keys are read once and the
// result follows the order in which keys were first requested. Missing items
// are skipped unless opts.Strict is set.
func (s *Store) BatchGet(ctx context.Context, ks []keys.Key, opts BatchGetOptions) ([]Item, error) {
	unique := make([]keys.Key, 0, len(ks))
	seen := make(map[keys.Key]bool, len(ks))
	for _, k := range ks {
		if !seen[k] {
			seen[k] = true
			unique = append(unique, k)
		}
	}

	found := make(map[keys.Key]Item, len(unique))
	for start := 0; start < len(unique); start += maxBatchGetKeys {
		end := min(start+maxBatchGetKeys, len(unique))
		if err := s.batchGetChunk(ctx, unique[start:end], found); err != nil {
			return nil, err
		}
	}

	out := make([]Item, 0, len(unique))
	for _, k := range unique {
		it, ok := found[k]
		if !ok {
			if opts.Strict {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, k)
			}
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (s *Store) batchGetChunk(ctx context.Context, chunk []keys.Key, found map[keys.Key]Item) error {
	attrs := make([]map[string]types.AttributeValue, len(chunk))
	for i, k := range chunk {
		attrs[i] = keyAttrs(k)
	}
	request := map[string]types.KeysAndAttributes{
		s.config.TableName: {Keys: attrs, ConsistentRead: aws.Bool(true)},
	}

	for attempt := 0; ; attempt++ {
		out, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
		if err != nil {
			return classify("batch get", err)
		}
		for _, raw := range out.Responses[s.config.TableName] {
			if k, ok := Item(raw).Key(); ok {
				found[k] = raw
			}
		}

		pending := len(out.UnprocessedKeys[s.config.TableName].Keys)
		if pending == 0 {
			return nil
		}
		if attempt >= s.config.BatchGetRetries {
			return fmt.Errorf("store: batch get: %w: %d keys unprocessed", ErrThrottled, pending)
		}
		s.logger.Debug().Int("attempt", attempt+1).Int("pending", pending).Msg("retrying unprocessed keys")
		if err := s.sleep(ctx, batchGetBackoff<<attempt); err != nil {
			return fmt.Errorf("store: batch get: %w", err)
		}
		request = out.UnprocessedKeys
	}
}

// WithKeys returns a copy of item carrying the key and index attributes of k.
func WithKeys(k keys.Keys, item Item) Item {
	return withKeys(k, item)
}

// LimitFor returns the effective page size of a query against d.
func LimitFor(d IndexDescriptor, limit int32) int32 {
	if limit <= 0 {
		limit = d.PageSize
	}
	return min(limit, MaxPageSize)
}

func keyAttrs(k keys.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		keys.AttrPK: &types.AttributeValueMemberS{Value: k.PK},
		keys.AttrSK: &types.AttributeValueMemberS{Value: k.SK},
	}
}

func withKeys(k keys.Keys, item Item) Item {
	out := make(Item, len(item)+len(k.Index)+3)
	for name, v := range item {
		out[name] = v
	}
	for name, v := range k.Attributes() {
		out[name] = &types.AttributeValueMemberS{Value: v}
	}
	return out
}

func conditionExpr(c Condition) (*expression.Expression, error) {
	var cond expression.ConditionBuilder
	switch c {
	case Unconditional:
		return nil, nil
	case IfAbsent:
		cond = expression.AttributeNotExists(expression.Name(keys.AttrPK))
	case IfPresent:
		cond = expression.AttributeExists(expression.Name(keys.AttrPK))
	default:
		return nil, validationf("unknown condition %d", int(c))
	}
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return &expr, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
