package store

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sv(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }

func mv(kv ...string) types.AttributeValue {
	m := map[string]types.AttributeValue{}
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = sv(kv[i+1])
	}
	return &types.AttributeValueMemberM{Value: m}
}

// --- buildUpdate Tests ---

func TestBuildUpdate_Replace(t *testing.T) {
	u := buildUpdate(Ops{"username": Replace("bob")}, map[string]types.AttributeValue{"username": sv("bob")}, Item{})

	assert.Equal(t, []string{"#n1 = :v0"}, u.sets)
	assert.Equal(t, []string{"attribute_exists(#n0)"}, u.conds)
	assert.Equal(t, "username", u.names["#n1"])
}

func TestBuildUpdate_AddOrMergeAbsent(t *testing.T) {
	u := buildUpdate(Ops{"address": AddOrMerge(nil)}, map[string]types.AttributeValue{"address": mv("city", "Accra")}, Item{})

	assert.Equal(t, []string{"#n1 = :v0"}, u.sets)
	assert.Equal(t, []string{"attribute_exists(#n0)", "attribute_not_exists(#n1)"}, u.conds)
}

func TestBuildUpdate_AddOrMergeScalarPresent(t *testing.T) {
	u := buildUpdate(Ops{"about": AddOrMerge(nil)}, map[string]types.AttributeValue{"about": sv("new")}, Item{"about": sv("old")})

	assert.Equal(t, []string{"#n1 = if_not_exists(#n1, :v0)"}, u.sets)
	assert.Len(t, u.conds, 1)
}

func TestBuildUpdate_AddOrMergeEmptyMap(t *testing.T) {
	u := buildUpdate(Ops{"address": AddOrMerge(nil)}, map[string]types.AttributeValue{"address": mv()}, Item{"address": mv("street", "x")})

	assert.Empty(t, u.sets)
}

func TestBuildUpdate_MapMergeIsDeterministic(t *testing.T) {
	values := map[string]types.AttributeValue{"address": mv("zip", "1", "city", "Accra")}
	current := Item{"address": mv("street", "x")}

	first := buildUpdate(Ops{"address": AddOrMerge(nil)}, values, current)
	for i := 0; i < 10; i++ {
		again := buildUpdate(Ops{"address": AddOrMerge(nil)}, values, current)
		assert.Equal(t, first.sets, again.sets)
		assert.Equal(t, first.names, again.names)
	}
	assert.Equal(t, []string{"#n1.#n2 = :v0", "#n1.#n3 = :v1"}, first.sets)
	assert.Equal(t, "city", first.names["#n2"])
}

// --- ApplyOps Tests ---

func TestApplyOps(t *testing.T) {
	current := Item{
		"username": sv("old"),
		"about":    sv("keep"),
		"address":  mv("street", "1 Main", "city", "Old"),
	}
	values := map[string]types.AttributeValue{
		"username": sv("new"),
		"about":    sv("ignored"),
		"address":  mv("city", "New"),
		"userType": sv("ADMIN"),
	}
	ops := Ops{
		"username": Replace(nil),
		"about":    AddOrMerge(nil),
		"address":  AddOrMerge(nil),
		"userType": AddOrMerge(nil),
	}

	out := ApplyOps(current, ops, values)

	assert.Equal(t, "new", out.String("username"))
	assert.Equal(t, "keep", out.String("about"))
	assert.Equal(t, "ADMIN", out.String("userType"))
	assert.Equal(t, mv("street", "1 Main", "city", "New"), out["address"])
	assert.Equal(t, "old", current.String("username"), "input must not be mutated")
}

// --- Error Mapping Tests ---

func TestCancellationSentinel(t *testing.T) {
	reason := func(code string) types.CancellationReason { return types.CancellationReason{Code: aws.String(code)} }

	tests := []struct {
		name    string
		reasons []types.CancellationReason
		want    error
	}{
		{"condition wins", []types.CancellationReason{reason("ThrottlingError"), reason("ConditionalCheckFailed")}, ErrConditionFailed},
		{"throttled", []types.CancellationReason{reason("None"), reason("ProvisionedThroughputExceeded")}, ErrThrottled},
		{"validation", []types.CancellationReason{reason("ValidationError")}, ErrValidation},
		{"conflict", []types.CancellationReason{reason("TransactionConflict")}, ErrStoreUnavailable},
		{"no reasons", nil, ErrStoreUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cancellationSentinel(tt.reasons))
		})
	}
}

func TestSentinelForCode(t *testing.T) {
	assert.Equal(t, ErrConditionFailed, sentinelForCode("ConditionalCheckFailedException"))
	assert.Equal(t, ErrThrottled, sentinelForCode("LimitExceededException"))
	assert.Equal(t, ErrValidation, sentinelForCode("SerializationException"))
	assert.Equal(t, ErrStoreUnavailable, sentinelForCode("InternalServerError"))
}

func TestClassify_Nil(t *testing.T) {
	assert.NoError(t, classify("get", nil))
}

// --- Config Tests ---

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		in   Config
		want Config
	}{
		{"zero", Config{}, Config{TableName: "social", CommentShards: 1}},
		{"clamps shards", Config{TableName: "t", CommentShards: 1000, BatchGetRetries: 2}, Config{TableName: "t", CommentShards: 256, BatchGetRetries: 2}},
		{"clamps retries", Config{TableName: "t", CommentShards: 4, BatchGetRetries: 50}, Config{TableName: "t", CommentShards: 4, BatchGetRetries: 10}},
		{"negative retries", Config{TableName: "t", CommentShards: 4, BatchGetRetries: -1}, Config{TableName: "t", CommentShards: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.in
			c.validate()
			assert.Equal(t, tt.want, c)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	before := c
	c.validate()
	assert.Equal(t, before, c, "defaults are already valid")
}

// --- Cursor Tests ---

func TestCursor_StartKey(t *testing.T) {
	d, err := NewCatalog().Resolve(PatternPostComments)
	require.NoError(t, err)

	c := Cursor{Pattern: PatternPostComments, LastKey: map[string]string{"GSI4PK": "POST#p1", "GSI4SK": "COMMENT#c1"}}
	start, err := c.StartKey(d, "POST#p1")
	require.NoError(t, err)
	assert.Equal(t, sv("COMMENT#c1"), start["GSI4SK"])

	_, err = c.StartKey(d, "POST#p2")
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestNewUsesDefaults(t *testing.T) {
	s := New(nil, Config{CommentShards: 8})
	assert.Equal(t, "social", s.TableName())
	assert.Equal(t, 8, s.Codec().CommentShards())
	assert.NotNil(t, s.Catalog())
}
