package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

var (
	// ErrNotFound is returned when a point lookup, update or strict batch read
	// finds no item under the requested key.
	ErrNotFound = errors.New("socialtable: item not found")

	// ErrConditionFailed is returned when a write precondition does not hold,
	// e.g. an item already exists under the key (or email) being created.
	ErrConditionFailed = errors.New("socialtable: condition failed")

	// ErrValidation is returned when a request is malformed before or after it
	// reaches the table.
	ErrValidation = errors.New("socialtable: validation failed")

	// ErrStoreUnavailable is returned for transport and service faults.
	ErrStoreUnavailable = errors.New("socialtable: store unavailable")

	// ErrThrottled is returned when capacity is exceeded and retries ran out.
	ErrThrottled = errors.New("socialtable: throttled")

	// ErrUnknownPattern is returned when a query names a pattern the catalog
	// does not define.
	ErrUnknownPattern = errors.New("socialtable: unknown access pattern")

	// ErrInvalidCursor is returned for cursors that cannot be decoded or were
	// issued for a different pattern or partition.
	ErrInvalidCursor = errors.New("socialtable: invalid cursor")
)

// classify maps an SDK failure onto the error taxonomy. The original error
// stays in the chain so callers can still inspect it.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("store: %s: %w", op, err)
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		return fmt.Errorf("store: %s: %w: %w", op, cancellationSentinel(txErr.CancellationReasons), err)
	}

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return fmt.Errorf("store: %s: %w: %w", op, ErrConditionFailed, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("store: %s: %w: %w", op, sentinelForCode(apiErr.ErrorCode()), err)
	}
	return fmt.Errorf("store: %s: %w: %w", op, ErrStoreUnavailable, err)
}

func sentinelForCode(code string) error {
	switch code {
	case "ConditionalCheckFailedException":
		return ErrConditionFailed
	case "ProvisionedThroughputExceededException", "ThrottlingException",
		"RequestLimitExceeded", "LimitExceededException":
		return ErrThrottled
	case "ValidationException", "SerializationException":
		return ErrValidation
	}
	return ErrStoreUnavailable
}

// cancellationSentinel picks the sentinel for a cancelled transaction from its
// per-item reasons. A failed condition on any item wins over other reasons.
func cancellationSentinel(reasons []types.CancellationReason) error {
	var throttled, invalid bool
	for _, r := range reasons {
		switch aws.ToString(r.Code) {
		case "ConditionalCheckFailed":
			return ErrConditionFailed
		case "ThrottlingError", "ProvisionedThroughputExceeded", "RequestLimitExceeded":
			throttled = true
		case "ValidationError", "ItemCollectionSizeLimitExceeded":
			invalid = true
		}
	}
	switch {
	case invalid:
		return ErrValidation
	case throttled:
		return ErrThrottled
	}
	return ErrStoreUnavailable
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
