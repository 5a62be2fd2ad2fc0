package keys

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidKeyInput is returned when a required key field is absent, empty or malformed.
var ErrInvalidKeyInput = errors.New("socialtable: invalid key input")

// Kind identifies an entity type in the shared keyspace.
type Kind string

const (
	KindUser      Kind = "USER"
	KindUserEmail Kind = "USER_EMAIL"
	KindPost      Kind = "POST"
	KindComment   Kind = "COMMENT"
	KindFollow    Kind = "FOLLOW"
)

// Key prefixes.
const (
	PrefixUser      = "USER#"
	PrefixUserEmail = "USER_EMAIL#"
	PrefixPost      = "POST#"
	PrefixComment   = "COMMENT#"
	PrefixFollower  = "FOLLOWERID#"
	PrefixFollowing = "FOLLOWINGID#"
)

// Attribute names.
const (
	AttrPK     = "PK"
	AttrSK     = "SK"
	AttrEntity = "ENTITY"
	AttrGSI1PK = "GSI1PK"
	AttrGSI1SK = "GSI1SK"
	AttrGSI2PK = "GSI2PK"
	AttrGSI2SK = "GSI2SK"
	AttrGSI3PK = "GSI3PK"
	AttrGSI3SK = "GSI3SK"
	AttrGSI4PK = "GSI4PK"
	AttrGSI4SK = "GSI4SK"
	AttrEmail  = "email"
)

// Field names accepted by Build.
const (
	FieldID          = "id"
	FieldUserID      = "userId"
	FieldPostID      = "postId"
	FieldFollowerID  = "followerId"
	FieldFollowingID = "followingId"
	FieldEmail       = "email"
)

// Key is the composite primary key of an item.
type Key struct {
	PK string
	SK string
}

func (k Key) String() string { return k.PK + "|" + k.SK }

// Fields holds the identifying fields of an entity.
type Fields map[string]string

// Keys is the full key material for one item.
type Keys struct {
	Kind Kind
	Key  Key

	// Index holds the derived secondary-index attributes.
	Index map[string]string
}

// Attributes returns every key-scheme attribute to write alongside the item.
func (k Keys) Attributes() map[string]string {
	attrs := make(map[string]string, len(k.Index)+3)
	attrs[AttrPK] = k.Key.PK
	attrs[AttrSK] = k.Key.SK
	attrs[AttrEntity] = string(k.Kind)
	for name, v := range k.Index {
		attrs[name] = v
	}
	return attrs
}

// NewID returns a k-sortable identifier. UUIDv7 carries a millisecond
// timestamp in its leading bits, so its string form sorts by creation time.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// IsManaged reports whether attr is written by the key scheme and must not be
// set through a field update.
func IsManaged(attr string) bool {
	switch attr {
	case AttrPK, AttrSK, AttrEntity,
		AttrGSI1PK, AttrGSI1SK, AttrGSI2PK, AttrGSI2SK,
		AttrGSI3PK, AttrGSI3SK, AttrGSI4PK, AttrGSI4SK:
		return true
	}
	return false
}

// TrimPrefix extracts the identifier from a single-segment key value such as
// "FOLLOWERID#abc".
func TrimPrefix(value, prefix string) (string, error) {
	id, ok := strings.CutPrefix(value, prefix)
	if !ok || id == "" || strings.Contains(id, "#") {
		return "", fmt.Errorf("%w: %q is not a %s key", ErrInvalidKeyInput, value, prefix)
	}
	return id, nil
}

// NormalizeEmail lower-cases and trims an address for uniqueness checks.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func require(kind Kind, f Fields, names ...string) error {
	for _, name := range names {
		v := f[name]
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: %s requires %s", ErrInvalidKeyInput, kind, name)
		}
		if name != FieldEmail && strings.Contains(v, "#") {
			return fmt.Errorf("%w: %s %s must not contain '#'", ErrInvalidKeyInput, kind, name)
		}
	}
	return nil
}

// Segment joins prefix and a single identifier, rejecting empty or
// separator-bearing identifiers.
func Segment(prefix, id string) (string, error) {
	if strings.TrimSpace(id) == "" || strings.Contains(id, "#") {
		return "", fmt.Errorf("%w: invalid %s identifier %q", ErrInvalidKeyInput, prefix, id)
	}
	return prefix + id, nil
}

// Immutable returns the fields of kind that feed its key or index attributes,
// or that are guarded by a separate uniqueness row. They cannot be changed by
// a field update; the item must be recreated instead.
func Immutable(kind Kind) []string {
	switch kind {
	case KindUser:
		return []string{FieldID, FieldEmail}
	case KindPost:
		return []string{FieldID, FieldUserID}
	case KindComment:
		return []string{FieldID, FieldPostID}
	case KindFollow:
		return []string{FieldFollowerID, FieldFollowingID}
	}
	return nil
}
