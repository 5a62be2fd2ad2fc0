package store

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/socialtable/keys"
)

// Client is the subset of the DynamoDB API the store uses. *dynamodb.Client
// satisfies it; tests substitute a fake.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Item is a raw table item.
type Item map[string]types.AttributeValue

// Key extracts the primary key of an item. ok is false when either key
// attribute is missing or not a string.
func (it Item) Key() (keys.Key, bool) {
	pk, ok1 := it[keys.AttrPK].(*types.AttributeValueMemberS)
	sk, ok2 := it[keys.AttrSK].(*types.AttributeValueMemberS)
	if !ok1 || !ok2 {
		return keys.Key{}, false
	}
	return keys.Key{PK: pk.Value, SK: sk.Value}, true
}

// String returns the string attribute name, or "" when it is absent or not a
// string.
func (it Item) String(name string) string {
	if v, ok := it[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// Condition is the precondition attached to a write.
type Condition int

const (
	// Unconditional overwrites whatever is stored under the key.
	Unconditional Condition = iota
	// IfAbsent succeeds only when nothing is stored under the key.
	IfAbsent
	// IfPresent succeeds only when an item is stored under the key.
	IfPresent
)

func (c Condition) String() string {
	switch c {
	case IfAbsent:
		return "ifAbsent"
	case IfPresent:
		return "ifPresent"
	}
	return "unconditional"
}

// PutRequest is one write of a transactional PutAll.
type PutRequest struct {
	Keys      keys.Keys
	Item      Item
	Condition Condition
}

// OpKind selects how an update operation combines with the stored value.
type OpKind int

const (
	// OpReplace overwrites the attribute.
	OpReplace OpKind = iota
	// OpAddOrMerge sets the attribute when absent. When both the stored and
	// the new value are maps, the new keys are merged into the stored map
	// one level deep.
	OpAddOrMerge
)

func (k OpKind) String() string {
	if k == OpAddOrMerge {
		return "addOrMerge"
	}
	return "replace"
}

// FieldOp is the update applied to a single attribute.
type FieldOp struct {
	Kind  OpKind
	Value any
}

// Replace returns an operation that overwrites an attribute with v.
func Replace(v any) FieldOp { return FieldOp{Kind: OpReplace, Value: v} }

// AddOrMerge returns an operation that sets an absent attribute to v or
// shallow-merges v into a stored map.
func AddOrMerge(v any) FieldOp { return FieldOp{Kind: OpAddOrMerge, Value: v} }

// Ops maps attribute names to the operation applied to each.
type Ops map[string]FieldOp

// Page is one page of a pattern query. Next is nil exactly when no further
// items exist for the predicate.
type Page struct {
	Items []Item
	Next  *string
}

// BatchGetOptions tunes BatchGet.
type BatchGetOptions struct {
	// Strict makes a missing key fail the whole read with ErrNotFound instead
	// of being omitted from the result.
	Strict bool
}
