package resolvers

import (
	"errors"
	"fmt"

	"github.com/jacentio/socialtable/keys"
	"github.com/jacentio/socialtable/pipeline"
	"github.com/jacentio/socialtable/publish"
	"github.com/jacentio/socialtable/store"
)

// ErrUnknownOperation is returned for a field no pipeline serves.
var ErrUnknownOperation = errors.New("socialtable: unknown operation")

// Error types reported to the API layer.
const (
	TypeConditionFailed  = "ConditionFailed"
	TypeNotFound         = "NotFound"
	TypeValidation       = "ValidationError"
	TypeInvalidCursor    = "InvalidCursor"
	TypeThrottled        = "Throttled"
	TypeStoreUnavailable = "StoreUnavailable"
	TypeUnknownOperation = "UnknownOperation"
	TypeInternal         = "InternalError"
)

// ErrorType classifies err for the API layer.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, store.ErrConditionFailed):
		return TypeConditionFailed
	case errors.Is(err, store.ErrNotFound):
		return TypeNotFound
	case errors.Is(err, store.ErrInvalidCursor):
		return TypeInvalidCursor
	case errors.Is(err, store.ErrValidation),
		errors.Is(err, keys.ErrInvalidKeyInput),
		errors.Is(err, pipeline.ErrBadRequest):
		return TypeValidation
	case errors.Is(err, store.ErrThrottled):
		return TypeThrottled
	case errors.Is(err, store.ErrStoreUnavailable):
		return TypeStoreUnavailable
	case errors.Is(err, ErrUnknownOperation):
		return TypeUnknownOperation
	case errors.Is(err, store.ErrUnknownPattern),
		errors.Is(err, publish.ErrMissingEventContext):
		return TypeInternal
	}
	return TypeInternal
}

// Error is the failure returned to the API layer.
type Error struct {
	Type    string `json:"errorType"`
	Message string `json:"errorMessage"`
	err     error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Type, e.Message) }

func (e *Error) Unwrap() error { return e.err }

// AsError wraps err with its API error type. Internal errors do not leak their
// message.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	typ := ErrorType(err)
	msg := err.Error()
	if typ == TypeInternal {
		msg = "internal error"
	}
	return &Error{Type: typ, Message: msg, err: err}
}
