package config

import (
	"os"
	"strconv"
	"time"

	"earningbot/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string

	BotToken          string
	FirebaseProjectID string
	FirebaseAPIKey    string

	// Keep-alive self-ping (prevents free-tier hosts from sleeping)
	KeepaliveURL      string
	KeepaliveInterval time.Duration

	LogLevel string
	LogJSON  bool
}

// Load reads configuration from the environment (and a .env file when
// present). Missing required values are fatal at startup.
func Load() *Config {
	_ = godotenv.Load()

	botToken := os.Getenv("USER_BOT_TOKEN")
	if botToken == "" {
		logger.Fatal("USER_BOT_TOKEN is not set")
	}

	projectID := os.Getenv("FIREBASE_PROJECT_ID")
	if projectID == "" {
		logger.Fatal("FIREBASE_PROJECT_ID is not set")
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	keepaliveInterval := 5 * time.Minute
	if v := os.Getenv("KEEPALIVE_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			keepaliveInterval = time.Duration(n) * time.Second
		}
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	return &Config{
		AppPort:           port,
		BotToken:          botToken,
		FirebaseProjectID: projectID,
		FirebaseAPIKey:    os.Getenv("FIREBASE_API_KEY"),
		KeepaliveURL:      os.Getenv("KEEPALIVE_URL"),
		KeepaliveInterval: keepaliveInterval,
		LogLevel:          logLevel,
		LogJSON:           os.Getenv("LOG_JSON") == "true",
	}
}
