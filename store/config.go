package store

// MaxPageSize bounds the number of items a single query page may return.
const MaxPageSize = 100

// Config holds configuration for the Store.
type Config struct {
	// TableName is the single table every entity lives in.
	// Default: "social"
	TableName string

	// CommentShards spreads comments over this many partitions.
	// Default: 1 (every comment under "COMMENT#")
	// Max: 256
	//
	// Comments are always read through the per-post index, so raising this
	// only changes base-table placement, never query results.
	CommentShards int

	// BatchGetRetries is how many times unprocessed keys of a batch read are
	// retried before the read fails with ErrThrottled.
	// Default: 3
	BatchGetRetries int
}

// DefaultConfig returns sensible defaults for small datasets.
func DefaultConfig() Config {
	return Config{
		TableName:       "social",
		CommentShards:   1,
		BatchGetRetries: 3,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.TableName == "" {
		c.TableName = "social"
	}
	if c.CommentShards < 1 {
		c.CommentShards = 1
	}
	if c.CommentShards > 256 {
		c.CommentShards = 256
	}
	if c.BatchGetRetries < 0 {
		c.BatchGetRetries = 0
	}
	if c.BatchGetRetries > 10 {
		c.BatchGetRetries = 10
	}
}
