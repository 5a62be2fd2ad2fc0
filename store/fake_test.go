package store_test

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/socialtable/store"
)

// fakeClient records every call and answers from per-verb hooks. A nil hook
// returns an empty output.
type fakeClient struct {
	mu sync.Mutex

	getItem     func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	putItem     func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	updateItem  func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error)
	deleteItem  func(*dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error)
	query       func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
	batchGet    func(*dynamodb.BatchGetItemInput) (*dynamodb.BatchGetItemOutput, error)
	transactPut func(*dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error)

	gets      []*dynamodb.GetItemInput
	puts      []*dynamodb.PutItemInput
	updates   []*dynamodb.UpdateItemInput
	deletes   []*dynamodb.DeleteItemInput
	queries   []*dynamodb.QueryInput
	batches   []*dynamodb.BatchGetItemInput
	transacts []*dynamodb.TransactWriteItemsInput
}

var _ store.Client = (*fakeClient)(nil)

func (f *fakeClient) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	f.gets = append(f.gets, in)
	f.mu.Unlock()
	if f.getItem == nil {
		return &dynamodb.GetItemOutput{}, nil
	}
	return f.getItem(in)
}

func (f *fakeClient) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	f.puts = append(f.puts, in)
	f.mu.Unlock()
	if f.putItem == nil {
		return &dynamodb.PutItemOutput{}, nil
	}
	return f.putItem(in)
}

func (f *fakeClient) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	f.updates = append(f.updates, in)
	f.mu.Unlock()
	if f.updateItem == nil {
		return &dynamodb.UpdateItemOutput{}, nil
	}
	return f.updateItem(in)
}

func (f *fakeClient) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	f.deletes = append(f.deletes, in)
	f.mu.Unlock()
	if f.deleteItem == nil {
		return &dynamodb.DeleteItemOutput{}, nil
	}
	return f.deleteItem(in)
}

func (f *fakeClient) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	cp := *in
	f.queries = append(f.queries, &cp)
	f.mu.Unlock()
	if f.query == nil {
		return &dynamodb.QueryOutput{}, nil
	}
	return f.query(&cp)
}

func (f *fakeClient) BatchGetItem(_ context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	f.mu.Lock()
	f.batches = append(f.batches, in)
	f.mu.Unlock()
	if f.batchGet == nil {
		return &dynamodb.BatchGetItemOutput{}, nil
	}
	return f.batchGet(in)
}

func (f *fakeClient) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	f.transacts = append(f.transacts, in)
	f.mu.Unlock()
	if f.transactPut == nil {
		return &dynamodb.TransactWriteItemsOutput{}, nil
	}
	return f.transactPut(in)
}

func str(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }

func keyItem(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"PK": str(pk), "SK": str(sk)}
}

func newStore(client store.Client) *store.Store {
	cfg := store.DefaultConfig()
	cfg.TableName = "social-test"
	cfg.BatchGetRetries = 1
	return store.New(client, cfg)
}
