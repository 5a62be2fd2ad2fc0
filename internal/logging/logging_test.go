package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("default level info", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(Config{Enabled: true}, &buf)
		assert.Equal(t, zerolog.InfoLevel, log.GetLevel())

		log.Debug().Msg("hidden")
		assert.Zero(t, buf.Len())
	})

	t.Run("custom level debug", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(Config{Enabled: true, Level: "DEBUG"}, &buf)
		log.Debug().Str("pattern", "getAllPosts").Msg("query page")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "debug", line["level"])
		assert.Equal(t, "getAllPosts", line["pattern"])
		assert.Contains(t, line, "time")
	})

	t.Run("invalid level falls back", func(t *testing.T) {
		log := NewWithWriter(Config{Enabled: true, Level: "loud"}, &bytes.Buffer{})
		assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
	})

	t.Run("console format", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(Config{Enabled: true, Format: "console"}, &buf)
		log.Info().Msg("hello")
		assert.Contains(t, buf.String(), "hello")
		assert.NotContains(t, buf.String(), `"message"`)
	})

	t.Run("disabled", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(Config{Enabled: false}, &buf)
		log.Error().Msg("dropped")
		assert.Zero(t, buf.Len())
	})
}
