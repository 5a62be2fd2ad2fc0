package keys

import (
	"fmt"
	"strings"

	"github.com/jacentio/socialtable/internal/shard"
)

// Codec builds and parses keys. It holds no state beyond its options and is
// safe for concurrent use.
type Codec struct {
	commentShards int
}

// NewCodec creates a Codec. commentShards controls how comments spread over
// partitions; 1 keeps every comment under the bare "COMMENT#" partition.
func NewCodec(commentShards int) *Codec {
	if commentShards < 1 {
		commentShards = 1
	}
	if commentShards > shard.MaxShards {
		commentShards = shard.MaxShards
	}
	return &Codec{commentShards: commentShards}
}

// CommentShards returns the configured comment shard count.
func (c *Codec) CommentShards() int { return c.commentShards }

// CommentPartition returns the partition key holding the comments of postID.
func (c *Codec) CommentPartition(postID string) string {
	return shard.Partition(PrefixComment, postID, c.commentShards)
}

// Build computes the primary key and index attributes for an entity.
func (c *Codec) Build(kind Kind, f Fields) (Keys, error) {
	switch kind {
	case KindUser:
		if err := require(kind, f, FieldID); err != nil {
			return Keys{}, err
		}
		id := PrefixUser + f[FieldID]
		return Keys{
			Kind: kind,
			Key:  Key{PK: id, SK: id},
			Index: map[string]string{
				AttrGSI1PK: PrefixUser,
				AttrGSI1SK: id,
			},
		}, nil

	case KindUserEmail:
		if err := require(kind, f, FieldEmail); err != nil {
			return Keys{}, err
		}
		guard := PrefixUserEmail + shard.Fingerprint(string(KindUser), FieldEmail, NormalizeEmail(f[FieldEmail]))
		return Keys{Kind: kind, Key: Key{PK: guard, SK: guard}}, nil

	case KindPost:
		if err := require(kind, f, FieldUserID, FieldID); err != nil {
			return Keys{}, err
		}
		sk := PrefixPost + f[FieldID]
		return Keys{
			Kind: kind,
			Key:  Key{PK: PrefixUser + f[FieldUserID], SK: sk},
			Index: map[string]string{
				AttrGSI2PK: PrefixPost,
				AttrGSI2SK: sk,
			},
		}, nil

	case KindComment:
		if err := require(kind, f, FieldPostID, FieldID); err != nil {
			return Keys{}, err
		}
		sk := PrefixComment + f[FieldID]
		return Keys{
			Kind: kind,
			Key:  Key{PK: c.CommentPartition(f[FieldPostID]), SK: sk},
			Index: map[string]string{
				AttrGSI4PK: PrefixPost + f[FieldPostID],
				AttrGSI4SK: sk,
			},
		}, nil

	case KindFollow:
		if err := require(kind, f, FieldFollowerID, FieldFollowingID); err != nil {
			return Keys{}, err
		}
		follower := PrefixFollower + f[FieldFollowerID]
		following := PrefixFollowing + f[FieldFollowingID]
		return Keys{
			Kind: kind,
			Key:  Key{PK: follower, SK: following},
			Index: map[string]string{
				AttrGSI3PK: following,
				AttrGSI3SK: follower,
			},
		}, nil
	}
	return Keys{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidKeyInput, kind)
}

// Parse recovers the kind and identifying fields from a primary key.
// Comment keys only yield the comment id: the post id is hashed into the
// partition and is read from the item instead.
func (c *Codec) Parse(k Key) (Kind, Fields, error) {
	switch {
	case strings.HasPrefix(k.PK, PrefixUserEmail):
		fp, err := TrimPrefix(k.PK, PrefixUserEmail)
		if err != nil || k.SK != k.PK {
			return "", nil, fmt.Errorf("%w: malformed email guard key %s", ErrInvalidKeyInput, k)
		}
		return KindUserEmail, Fields{"fingerprint": fp}, nil

	case strings.HasPrefix(k.PK, PrefixUser) && strings.HasPrefix(k.SK, PrefixUser):
		id, err := TrimPrefix(k.SK, PrefixUser)
		if err != nil || k.PK != k.SK {
			return "", nil, fmt.Errorf("%w: malformed user key %s", ErrInvalidKeyInput, k)
		}
		return KindUser, Fields{FieldID: id}, nil

	case strings.HasPrefix(k.PK, PrefixUser) && strings.HasPrefix(k.SK, PrefixPost):
		author, err := TrimPrefix(k.PK, PrefixUser)
		if err != nil {
			return "", nil, err
		}
		id, err := TrimPrefix(k.SK, PrefixPost)
		if err != nil {
			return "", nil, err
		}
		return KindPost, Fields{FieldUserID: author, FieldID: id}, nil

	case strings.HasPrefix(k.PK, PrefixComment):
		id, err := TrimPrefix(k.SK, PrefixComment)
		if err != nil {
			return "", nil, err
		}
		return KindComment, Fields{FieldID: id}, nil

	case strings.HasPrefix(k.PK, PrefixFollower):
		follower, err := TrimPrefix(k.PK, PrefixFollower)
		if err != nil {
			return "", nil, err
		}
		following, err := TrimPrefix(k.SK, PrefixFollowing)
		if err != nil {
			return "", nil, err
		}
		return KindFollow, Fields{FieldFollowerID: follower, FieldFollowingID: following}, nil
	}
	return "", nil, fmt.Errorf("%w: unrecognized key %s", ErrInvalidKeyInput, k)
}

// UserKey is shorthand for the primary key of a user.
func (c *Codec) UserKey(id string) (Key, error) {
	k, err := c.Build(KindUser, Fields{FieldID: id})
	return k.Key, err
}
