package resolvers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/socialtable/keys"
	"github.com/jacentio/socialtable/resolvers"
	"github.com/jacentio/socialtable/store"
)

func comment(t *testing.T, f *fixture, postID, text string) resolvers.Comment {
	t.Helper()
	out := f.must(t, resolvers.OpCreateComment, map[string]any{
		"commentInput": map[string]any{"postId": postID, "userId": "u1", "comment": text},
	})
	return out.(resolvers.Comment)
}

func TestComments(t *testing.T) {
	for _, shards := range []int{1, 8} {
		f := newFixtureWithCodec(t, keys.NewCodec(shards))
		a := comment(t, f, "p1", "one")
		comment(t, f, "p2", "elsewhere")
		c := comment(t, f, "p1", "three")

		out := f.must(t, resolvers.OpGetCommentsPerPost, map[string]any{"postId": "p1"})
		page := out.(resolvers.Page[resolvers.Comment])
		assert.Equal(t, []string{c.ID, a.ID}, ids(page.Items, commentID), "shards=%d", shards)
		assert.Nil(t, page.NextToken)
		assert.Equal(t, "three", page.Items[0].Comment)
	}
}

func TestCreateComment_StoredUnderCommentPartition(t *testing.T) {
	f := newFixture(t)
	c := comment(t, f, "p1", "hi")

	k, err := f.mem.Codec().Build(keys.KindComment, keys.Fields{keys.FieldID: c.ID, keys.FieldPostID: "p1"})
	require.NoError(t, err)
	item, ok := f.mem.Item(k.Key)
	require.True(t, ok)
	assert.Equal(t, "COMMENT#", item.String(keys.AttrPK))
	assert.Equal(t, "POST#p1", item.String(keys.AttrGSI4PK))
}

func TestCreateComment_Validation(t *testing.T) {
	f := newFixture(t)
	_, err := f.call(t, resolvers.OpCreateComment, map[string]any{
		"commentInput": map[string]any{"postId": "p1", "userId": "u1"},
	})
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = f.call(t, resolvers.OpCreateComment, map[string]any{
		"commentInput": map[string]any{"postId": "p#1", "userId": "u1", "comment": "x"},
	})
	assert.ErrorIs(t, err, keys.ErrInvalidKeyInput)
	assert.Equal(t, 0, f.mem.Len())
}
