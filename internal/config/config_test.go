package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(env(nil))
	require.NoError(t, err)

	assert.Equal(t, "social", cfg.Store.TableName)
	assert.Equal(t, 1, cfg.Store.CommentShards)
	assert.Equal(t, PublisherEventBridge, cfg.Events.Publisher)
	assert.Equal(t, "email.socialEvent", cfg.Events.Source)
	assert.Equal(t, "postCreated", cfg.Trigger.DetailType)
	assert.True(t, cfg.Logging.Enabled)
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	cfg, err := LoadFrom(env(map[string]string{
		"TABLE_NAME":        "social-prod",
		"COMMENT_SHARDS":    "16",
		"PUBLISHER":         "sqs",
		"EVENT_QUEUE_URL":   "https://sqs.eu-west-1.amazonaws.com/123/events",
		"LOG_LEVEL":         "debug",
		"DYNAMODB_ENDPOINT": "http://localhost:8000",
		"STATE_MACHINE_ARN": "arn:aws:states:eu-west-1:123:stateMachine:bulk",
	}))
	require.NoError(t, err)

	assert.Equal(t, "social-prod", cfg.Store.TableName)
	assert.Equal(t, 16, cfg.Store.CommentShards)
	assert.Equal(t, PublisherSQS, cfg.Events.Publisher)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "http://localhost:8000", cfg.AWS.DynamoDBEndpoint)
	assert.Equal(t, "arn:aws:states:eu-west-1:123:stateMachine:bulk", cfg.Trigger.StateMachineARN)

	sc := cfg.StoreConfig()
	assert.Equal(t, "social-prod", sc.TableName)
	assert.Equal(t, 16, sc.CommentShards)
}

func TestLoadFrom_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "social.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  tableName: from-file
  commentShards: 4
events:
  busName: social-bus
logging:
  format: console
`), 0o600))

	cfg, err := LoadFrom(env(map[string]string{"SOCIAL_CONFIG": path, "TABLE_NAME": "from-env"}))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Store.TableName, "env wins over file")
	assert.Equal(t, 4, cfg.Store.CommentShards)
	assert.Equal(t, "social-bus", cfg.Events.BusName)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "email.socialEvent", cfg.Events.Source, "defaults survive partial files")
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"shards out of range", map[string]string{"COMMENT_SHARDS": "1000"}},
		{"shards not a number", map[string]string{"COMMENT_SHARDS": "many"}},
		{"unknown publisher", map[string]string{"PUBLISHER": "kafka"}},
		{"sqs without queue", map[string]string{"PUBLISHER": "sqs"}},
		{"bad endpoint", map[string]string{"DYNAMODB_ENDPOINT": "not a url"}},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}},
		{"missing file", map[string]string{"SOCIAL_CONFIG": "/does/not/exist.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(env(tt.vars))
			assert.Error(t, err)
		})
	}
}

func TestTriggerRule(t *testing.T) {
	cfg, err := LoadFrom(env(map[string]string{
		"STATE_MACHINE_ARN": "arn:aws:states:eu-west-1:123:stateMachine:bulk",
	}))
	require.NoError(t, err)

	rule := cfg.TriggerRule()
	assert.Equal(t, "email.socialEvent", rule.Source)
	assert.Equal(t, "postCreated", rule.DetailType)
	assert.Equal(t, "arn:aws:states:eu-west-1:123:stateMachine:bulk", rule.StateMachineARN)
	assert.True(t, rule.Matches("email.socialEvent", "postCreated"))
}
