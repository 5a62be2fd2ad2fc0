package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Cursor is the decoded form of a pagination token. It carries the pattern it
// was issued for and the last evaluated key of the page that produced it.
type Cursor struct {
	Pattern string            `json:"p"`
	LastKey map[string]string `json:"k"`
}

// EncodeCursor serializes the last evaluated key of a page. Only string key
// attributes are supported, which covers every key in the table.
func EncodeCursor(pattern string, lastKey map[string]types.AttributeValue) (string, error) {
	c := Cursor{Pattern: pattern, LastKey: make(map[string]string, len(lastKey))}
	for name, av := range lastKey {
		s, ok := av.(*types.AttributeValueMemberS)
		if !ok {
			return "", fmt.Errorf("cursor: key attribute %q is not a string", name)
		}
		c.LastKey[name] = s.Value
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeCursor parses a token produced by EncodeCursor.
func DecodeCursor(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}
	if c.Pattern == "" || len(c.LastKey) == 0 {
		return Cursor{}, fmt.Errorf("%w: empty cursor", ErrInvalidCursor)
	}
	return c, nil
}

// StartKey validates c against the query it resumes and returns the exclusive
// start key.
func (c Cursor) StartKey(d IndexDescriptor, partition string) (map[string]types.AttributeValue, error) {
	if c.Pattern != d.Pattern {
		return nil, fmt.Errorf("%w: issued for %q, used with %q", ErrInvalidCursor, c.Pattern, d.Pattern)
	}
	if c.LastKey[d.PartitionAttr] != partition {
		return nil, fmt.Errorf("%w: partition mismatch", ErrInvalidCursor)
	}
	out := make(map[string]types.AttributeValue, len(c.LastKey))
	for name, v := range c.LastKey {
		out[name] = &types.AttributeValueMemberS{Value: v}
	}
	return out, nil
}
