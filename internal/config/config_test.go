package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "http://localhost:8080", cfg.APIBaseURL)
	assert.Equal(t, "ws://localhost:8080", cfg.WSBaseURL)
	assert.Equal(t, 2*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 0, cfg.ReconnectMaxAttempts)
	assert.Equal(t, "room_events", cfg.AMQPExchange)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("WS_BASE_URL", "wss://chat.example.com")
	t.Setenv("WS_RECONNECT_DELAY", "500ms")
	t.Setenv("WS_RECONNECT_MAX_ATTEMPTS", "10")

	cfg := Load()

	assert.Equal(t, "wss://chat.example.com", cfg.WSBaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.ReconnectDelay)
	assert.Equal(t, 10, cfg.ReconnectMaxAttempts)
}

func TestSubscribeURL(t *testing.T) {
	cfg := Config{WSBaseURL: "ws://localhost:8080"}
	assert.Equal(t, "ws://localhost:8080/subscribe/r1", cfg.SubscribeURL("r1"))
}
