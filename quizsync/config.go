package quizsync

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultServerURL is used when no URL is supplied via config or env.
	DefaultServerURL = "wss://play.quizsync.dev/ws"

	// EnvServerURL names the environment variable that overrides the URL.
	EnvServerURL = "QUIZSYNC_SERVER_URL"
)

// Config controls how the SDK connects.
type Config struct {
	URL string

	// Reconnect policy after an unexpected transport loss.
	AutoReconnect     bool
	ReconnectInterval time.Duration
	MaxReconnectTries int

	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration // 0 disables; the server pushes events at its own pace
	WriteTimeout     time.Duration

	// QuestionDuration is the per-question countdown, in seconds.
	QuestionDuration int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:               DefaultServerURL,
		AutoReconnect:     true,
		ReconnectInterval: time.Second,
		MaxReconnectTries: 5,
		HandshakeTimeout:  10 * time.Second,
		WriteTimeout:      10 * time.Second,
		QuestionDuration:  10,
	}
}

// ConfigFromEnv builds a config from the environment, loading a .env file
// when one is present. QUIZSYNC_SERVER_URL overrides the server URL.
func ConfigFromEnv() Config {
	_ = godotenv.Load()
	cfg := DefaultConfig()
	if v := os.Getenv(EnvServerURL); v != "" {
		cfg.URL = v
	}
	return cfg
}
