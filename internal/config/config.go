// Package config loads service configuration from an optional YAML file and
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jacentio/socialtable/internal/logging"
	"github.com/jacentio/socialtable/store"
	"github.com/jacentio/socialtable/trigger"
)

// Publisher names.
const (
	PublisherEventBridge = "eventbridge"
	PublisherSQS         = "sqs"
)

// Config is the full service configuration.
type Config struct {
	Store   StoreConfig    `yaml:"store"`
	AWS     AWSConfig      `yaml:"aws"`
	Events  EventsConfig   `yaml:"events"`
	Trigger TriggerConfig  `yaml:"trigger"`
	Logging logging.Config `yaml:"logging"`
	Metrics MetricsConfig  `yaml:"metrics"`
}

type StoreConfig struct {
	TableName       string `yaml:"tableName" validate:"required"`
	CommentShards   int    `yaml:"commentShards" validate:"min=1,max=256"`
	BatchGetRetries int    `yaml:"batchGetRetries" validate:"min=0,max=10"`
}

type AWSConfig struct {
	Region string `yaml:"region"`
	// DynamoDBEndpoint points the client at DynamoDB Local or another
	// compatible endpoint.
	DynamoDBEndpoint string `yaml:"dynamodbEndpoint" validate:"omitempty,url"`
}

type EventsConfig struct {
	Publisher string `yaml:"publisher" validate:"oneof=eventbridge sqs"`
	Source    string `yaml:"source" validate:"required"`
	BusName   string `yaml:"busName"`
	QueueURL  string `yaml:"queueUrl" validate:"omitempty,url"`
}

type TriggerConfig struct {
	StateMachineARN string `yaml:"stateMachineArn"`
	DetailType      string `yaml:"detailType" validate:"required"`
}

type MetricsConfig struct {
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	sc := store.DefaultConfig()
	return Config{
		Store: StoreConfig{
			TableName:       sc.TableName,
			CommentShards:   sc.CommentShards,
			BatchGetRetries: sc.BatchGetRetries,
		},
		Events: EventsConfig{
			Publisher: PublisherEventBridge,
			Source:    "email.socialEvent",
			BusName:   "default",
		},
		Trigger: TriggerConfig{DetailType: "postCreated"},
		Logging: logging.Config{Level: "info", Format: "json", Enabled: true},
		Metrics: MetricsConfig{Namespace: "social."},
	}
}

// Load reads configuration from the process environment.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads configuration through getenv. SOCIAL_CONFIG names an
// optional YAML file applied over the defaults; individual variables are
// applied over the file.
func LoadFrom(getenv func(string) string) (Config, error) {
	cfg := Default()

	if path := getenv("SOCIAL_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"TABLE_NAME":        &c.Store.TableName,
		"AWS_REGION":        &c.AWS.Region,
		"DYNAMODB_ENDPOINT": &c.AWS.DynamoDBEndpoint,
		"EVENT_BUS_NAME":    &c.Events.BusName,
		"EVENT_QUEUE_URL":   &c.Events.QueueURL,
		"EVENT_SOURCE":      &c.Events.Source,
		"PUBLISHER":         &c.Events.Publisher,
		"LOG_LEVEL":         &c.Logging.Level,
		"LOG_FORMAT":        &c.Logging.Format,
		"DD_AGENT_ADDR":     &c.Metrics.Addr,
		"STATE_MACHINE_ARN": &c.Trigger.StateMachineARN,
	}
	for name, dst := range strs {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			*dst = v
		}
	}

	if v := getenv("COMMENT_SHARDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: COMMENT_SHARDS: %w", err)
		}
		c.Store.CommentShards = n
	}
	return nil
}

// Validate checks struct tags, then rules spanning several fields.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", e.Namespace(), e.Tag()))
			}
			return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: %w", err)
	}

	switch {
	case c.Events.Publisher == PublisherEventBridge && c.Events.BusName == "":
		return fmt.Errorf("config: eventbridge publisher requires events.busName")
	case c.Events.Publisher == PublisherSQS && c.Events.QueueURL == "":
		return fmt.Errorf("config: sqs publisher requires events.queueUrl")
	}
	return nil
}

// StoreConfig converts to the store's own configuration.
func (c Config) StoreConfig() store.Config {
	return store.Config{
		TableName:       c.Store.TableName,
		CommentShards:   c.Store.CommentShards,
		BatchGetRetries: c.Store.BatchGetRetries,
	}
}

// TriggerRule is the workflow rule for the configured event source.
func (c Config) TriggerRule() trigger.Rule {
	return trigger.Rule{
		Source:          c.Events.Source,
		DetailType:      c.Trigger.DetailType,
		StateMachineARN: c.Trigger.StateMachineARN,
	}
}
