package quizsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, DefaultServerURL, cfg.URL)
	assert.True(t, cfg.AutoReconnect)
	assert.Equal(t, 5, cfg.MaxReconnectTries)
	assert.Equal(t, time.Second, cfg.ReconnectInterval)
	assert.Equal(t, 10, cfg.QuestionDuration)
}

func TestConfigFromEnvOverridesURL(t *testing.T) {
	t.Setenv(EnvServerURL, "wss://staging.example.net/ws")
	cfg := ConfigFromEnv()
	assert.Equal(t, "wss://staging.example.net/ws", cfg.URL)
}

func TestConfigFromEnvFallsBackToDefault(t *testing.T) {
	t.Setenv(EnvServerURL, "")
	cfg := ConfigFromEnv()
	assert.Equal(t, DefaultServerURL, cfg.URL)
}
