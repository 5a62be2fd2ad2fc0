package resolvers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jacentio/socialtable/keys"
	"github.com/jacentio/socialtable/pipeline"
	"github.com/jacentio/socialtable/publish/publishtest"
	"github.com/jacentio/socialtable/resolvers"
	"github.com/jacentio/socialtable/store/storetest"
)

type fixture struct {
	mem *storetest.Memory
	bus *publishtest.Memory
	r   *resolvers.Resolvers

	now time.Time
	seq int
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithCodec(t, nil)
}

func newFixtureWithCodec(t *testing.T, codec *keys.Codec) *fixture {
	t.Helper()
	f := &fixture{
		mem: storetest.NewMemory(codec),
		bus: &publishtest.Memory{},
		now: time.UnixMilli(1_700_000_000_000),
	}
	f.r = resolvers.New(f.mem, f.bus,
		resolvers.WithClock(func() time.Time {
			f.now = f.now.Add(time.Millisecond)
			return f.now
		}),
		resolvers.WithIDs(func() string {
			f.seq++
			return fmt.Sprintf("id%03d", f.seq)
		}),
	)
	return f
}

func request(t *testing.T, op string, args any) pipeline.Request {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	return pipeline.Request{Operation: op, Arguments: raw}
}

func (f *fixture) call(t *testing.T, op string, args any) (any, error) {
	t.Helper()
	return f.r.Resolve(context.Background(), request(t, op, args))
}

func (f *fixture) must(t *testing.T, op string, args any) any {
	t.Helper()
	out, err := f.call(t, op, args)
	require.NoError(t, err, op)
	return out
}

func (f *fixture) createUser(t *testing.T, email, username string) resolvers.User {
	t.Helper()
	out := f.must(t, resolvers.OpCreateUserAccount, map[string]any{
		"userInput": map[string]any{"email": email, "username": username},
	})
	return out.(resolvers.User)
}

func (f *fixture) createPost(t *testing.T, userID, content string) resolvers.Post {
	t.Helper()
	out := f.must(t, resolvers.OpCreatePost, map[string]any{
		"postInput": map[string]any{"userId": userID, "content": content},
	})
	return out.(resolvers.Post)
}

func (f *fixture) follow(t *testing.T, follower, following string) {
	t.Helper()
	f.must(t, resolvers.OpFollowUser, map[string]any{"followerId": follower, "followingId": following})
}

func ids[T any](items []T, id func(T) string) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = id(it)
	}
	return out
}

func userID(u resolvers.User) string       { return u.ID }
func postID(p resolvers.Post) string       { return p.ID }
func commentID(c resolvers.Comment) string { return c.ID }
