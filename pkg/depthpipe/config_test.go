package depthpipe

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	c := NewConfig("test")
	require.NoError(t, c.Parse(nil))
	assert.Equal(t, "pinhole", c.Model())
	assert.Equal(t, zerolog.InfoLevel, c.LogLevel())
}

func TestConfigParsesFlags(t *testing.T) {
	c := NewConfig("test")
	require.NoError(t, c.Parse([]string{"--model=kannala_brandt", "--log=debug"}))
	assert.Equal(t, "kannala_brandt", c.Model())
	assert.Equal(t, zerolog.DebugLevel, c.LogLevel())
}

func TestConfigInvalidLogLevelDefaultsToInfo(t *testing.T) {
	c := NewConfig("test")
	require.NoError(t, c.Parse([]string{"--log=not-a-level"}))
	assert.Equal(t, zerolog.InfoLevel, c.LogLevel())
}
