package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the client configuration, loaded from the environment with an
// optional .env file.
type Config struct {
	APIBaseURL string
	WSBaseURL  string
	Nickname   string

	StatusAddr string

	AMQPURL      string
	AMQPExchange string

	ArchiveDSN string

	Environment string

	ReconnectDelay       time.Duration
	ReconnectMaxAttempts int
}

// Load reads configuration from the environment. A missing .env file is not
// an error.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		APIBaseURL:           getEnv("API_BASE_URL", "http://localhost:8080"),
		WSBaseURL:            getEnv("WS_BASE_URL", "ws://localhost:8080"),
		Nickname:             getEnv("NICKNAME", ""),
		StatusAddr:           getEnv("STATUS_ADDR", ":8090"),
		AMQPURL:              getEnv("AMQP_URL", ""),
		AMQPExchange:         getEnv("AMQP_EXCHANGE", "room_events"),
		ArchiveDSN:           getEnv("ARCHIVE_DB_DSN", ""),
		Environment:          getEnv("ENVIRONMENT", "local"),
		ReconnectDelay:       getDurationEnv("WS_RECONNECT_DELAY", 2*time.Second),
		ReconnectMaxAttempts: getIntEnv("WS_RECONNECT_MAX_ATTEMPTS", 0),
	}
}

// SubscribeURL builds the live subscription endpoint for a room.
func (c Config) SubscribeURL(roomID string) string {
	return fmt.Sprintf("%s/subscribe/%s", c.WSBaseURL, roomID)
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
