// Package store provides the data gateway over the single social table.
//
// Every entity lives in one DynamoDB table keyed by PK and SK. Secondary
// indexes serve the named access patterns held in a [Catalog]; callers query
// by pattern name and never by index.
//
// # Operations
//
//   - [Store.Get] reads one item with strong consistency
//   - [Store.Put] and [Store.PutAll] write items, optionally guarded by a [Condition]
//   - [Store.Update] applies replace and addOrMerge [Ops] to an existing item
//   - [Store.Query] returns one [Page] of a pattern with an opaque cursor
//   - [Store.BatchGet] reads many items by key, retrying unprocessed keys
//
// # Configuration
//
// Use [DefaultConfig] for small datasets (one comment partition). Raise
// CommentShards when comment writes concentrate on a hot partition:
//
//	cfg := store.DefaultConfig()
//	cfg.CommentShards = 16
//
// # Errors
//
// Failures are classified into sentinels that callers match with errors.Is:
//
//   - [ErrNotFound] - no item under the key
//   - [ErrConditionFailed] - a write precondition did not hold
//   - [ErrValidation] - malformed request
//   - [ErrThrottled] - capacity exceeded, retries exhausted
//   - [ErrStoreUnavailable] - transport or service fault
//   - [ErrUnknownPattern] - the catalog has no such pattern
//   - [ErrInvalidCursor] - undecodable or mismatched cursor
package store
