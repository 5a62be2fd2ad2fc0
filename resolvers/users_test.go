package resolvers_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/socialtable/keys"
	"github.com/jacentio/socialtable/pipeline"
	"github.com/jacentio/socialtable/resolvers"
	"github.com/jacentio/socialtable/store"
	"github.com/jacentio/socialtable/store/storetest"
)

func TestCreateUserAccount(t *testing.T) {
	f := newFixture(t)

	u := f.createUser(t, " Ada@Example.com ", "ada")
	assert.Equal(t, "id001", u.ID)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, int64(1_700_000_000_001), u.CreatedOn)
	assert.Equal(t, 2, f.mem.Len(), "user row and email guard")

	key, err := f.mem.Codec().UserKey(u.ID)
	require.NoError(t, err)
	item, ok := f.mem.Item(key)
	require.True(t, ok)
	assert.Equal(t, "USER#id001", item.String(keys.AttrPK))
	assert.Equal(t, "USER#", item.String(keys.AttrGSI1PK))
	assert.Equal(t, "ada", item.String("username"))
}

func TestCreateUserAccount_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "ada@example.com", "ada")

	_, err := f.call(t, resolvers.OpCreateUserAccount, map[string]any{
		"userInput": map[string]any{"email": " ADA@example.com ", "username": "other"},
	})
	require.ErrorIs(t, err, store.ErrConditionFailed)
	assert.Equal(t, resolvers.TypeConditionFailed, resolvers.ErrorType(err))
	assert.Equal(t, 2, f.mem.Len(), "nothing written by the failed create")
}

func TestCreateUserAccount_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input map[string]any
	}{
		{name: "missing input", input: nil},
		{name: "missing email", input: map[string]any{"username": "ada"}},
		{name: "bad email", input: map[string]any{"email": "nope", "username": "ada"}},
		{name: "short username", input: map[string]any{"email": "a@b.io", "username": "a"}},
		{name: "bad user type", input: map[string]any{"email": "a@b.io", "username": "ada", "userType": "ROOT"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			args := map[string]any{}
			if tt.input != nil {
				args["userInput"] = tt.input
			}
			_, err := f.call(t, resolvers.OpCreateUserAccount, args)
			require.ErrorIs(t, err, store.ErrValidation)
			assert.Equal(t, 0, f.mem.Calls(storetest.OpPutAll))
		})
	}
}

func TestGetUserAccount(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "ada@example.com", "ada")

	out := f.must(t, resolvers.OpGetUserAccount, map[string]any{"id": u.ID})
	got, ok := out.(*resolvers.User)
	require.True(t, ok)
	require.NotNil(t, got)
	assert.Equal(t, u, *got)

	out = f.must(t, resolvers.OpGetUserAccount, map[string]any{"id": "missing"})
	assert.Nil(t, out.(*resolvers.User))

	_, err := f.call(t, resolvers.OpGetUserAccount, map[string]any{"id": "bad#id"})
	assert.Equal(t, resolvers.TypeValidation, resolvers.ErrorType(err))
}

func TestUserFieldResolvers(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "ada@example.com", "ada")

	for _, op := range []string{resolvers.OpPostUser, resolvers.OpCommentUser} {
		out, err := f.r.Resolve(context.Background(), pipeline.Request{
			Operation: op,
			Source:    []byte(`{"id":"p1","userId":"` + u.ID + `"}`),
		})
		require.NoError(t, err, op)
		require.NotNil(t, out.(*resolvers.User), op)
		assert.Equal(t, "ada", out.(*resolvers.User).Username)
	}

	_, err := f.r.Resolve(context.Background(), pipeline.Request{Operation: resolvers.OpPostUser})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestGetUserByEmail(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "ada@example.com", "ada")

	out := f.must(t, resolvers.OpGetUserByEmail, map[string]any{"email": " ADA@Example.com\t"})
	got := out.(*resolvers.User)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "ada@example.com", got.Email)

	out = f.must(t, resolvers.OpGetUserByEmail, map[string]any{"email": "bob@example.com"})
	assert.Nil(t, out.(*resolvers.User))

	_, err := f.call(t, resolvers.OpGetUserByEmail, map[string]any{"email": "   "})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestUpdateUserAccount(t *testing.T) {
	f := newFixture(t)
	out := f.must(t, resolvers.OpCreateUserAccount, map[string]any{
		"userInput": map[string]any{
			"email":    "ada@example.com",
			"username": "ada",
			"address":  map[string]any{"street": "1 Loop", "city": "London"},
		},
	})
	u := out.(resolvers.User)

	out = f.must(t, resolvers.OpUpdateUserAccount, map[string]any{
		"id": u.ID,
		"userInput": map[string]any{
			"username": "lovelace",
			"address":  map[string]any{"city": "Paris", "zipCode": "75001"},
		},
	})
	got := out.(resolvers.User)
	assert.Equal(t, "lovelace", got.Username)
	assert.Equal(t, "ada@example.com", got.Email)
	assert.Equal(t, u.CreatedOn, got.CreatedOn)
	assert.Greater(t, got.UpdatedOn, u.CreatedOn)
	assert.Equal(t, &resolvers.Address{Street: "1 Loop", City: "Paris", ZipCode: "75001"}, got.Address)
}

func TestUpdateUserAccount_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.call(t, resolvers.OpUpdateUserAccount, map[string]any{
		"id": "missing", "userInput": map[string]any{"username": "ghost"},
	})
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 0, f.mem.Len(), "update never creates")

	_, err = f.call(t, resolvers.OpUpdateUserAccount, map[string]any{"id": "x"})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestGetAllUsers_Pages(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"ada", "bob", "cyd"} {
		f.createUser(t, name+"@example.com", name)
	}

	out := f.must(t, resolvers.OpGetAllUsers, map[string]any{"limit": 2})
	page := out.(resolvers.Page[resolvers.User])
	assert.Equal(t, []string{"id001", "id002"}, ids(page.Items, userID))
	require.NotNil(t, page.NextToken)

	out = f.must(t, resolvers.OpGetAllUsers, map[string]any{"limit": 2, "nextToken": *page.NextToken})
	page = out.(resolvers.Page[resolvers.User])
	assert.Equal(t, []string{"id003"}, ids(page.Items, userID))
	assert.Nil(t, page.NextToken)

	_, err := f.call(t, resolvers.OpGetAllUsers, map[string]any{"nextToken": "garbage"})
	assert.ErrorIs(t, err, store.ErrInvalidCursor)

	_, err = f.call(t, resolvers.OpGetAllUsers, map[string]any{"limit": -1})
	assert.ErrorIs(t, err, store.ErrValidation)
}
