package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.UDPPort)
	assert.Equal(t, 0, cfg.StatusPort)
	assert.False(t, cfg.StatusEnabled())
	assert.Equal(t, 500*time.Millisecond, cfg.AckTimeout)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, "data/pokedex.csv", cfg.PokedexPath)
	assert.Equal(t, 30, cfg.ChatRate)
	assert.Equal(t, 5, cfg.ChatBurst)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":9000", cfg.BindAddr())

	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("UDP_PORT", "9100")
	t.Setenv("STATUS_PORT", "8080")
	t.Setenv("ACK_TIMEOUT", "250ms")
	t.Setenv("MAX_ATTEMPTS", "5")
	t.Setenv("CHAT_RATE", "12")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.UDPPort)
	assert.True(t, cfg.StatusEnabled())
	assert.Equal(t, 250*time.Millisecond, cfg.AckTimeout)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 12, cfg.ChatRate)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigRejectsMalformedValues(t *testing.T) {
	t.Setenv("UDP_PORT", "not-a-port")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Run("BadPort", func(t *testing.T) {
		cfg, err := LoadConfig()
		require.NoError(t, err)
		cfg.UDPPort = 70000
		assert.ErrorContains(t, cfg.Validate(), "UDP_PORT")
	})

	t.Run("BadLogLevel", func(t *testing.T) {
		cfg, err := LoadConfig()
		require.NoError(t, err)
		cfg.LogLevel = "verbose"
		assert.ErrorContains(t, cfg.Validate(), "LOG_LEVEL")
	})

	t.Run("BadAckTimeout", func(t *testing.T) {
		cfg, err := LoadConfig()
		require.NoError(t, err)
		cfg.AckTimeout = 0
		assert.ErrorContains(t, cfg.Validate(), "ACK_TIMEOUT")
	})
}
