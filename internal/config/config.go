package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Defaults for the store and session files, relative to the working directory.
const (
	DefaultDBPath      = "mygarage.db"
	DefaultSessionPath = "session_config.txt"
	DefaultLogLevel    = "warn"
)

// Config holds the application configuration
type Config struct {
	DBPath      string // User store file
	SessionPath string // One-line session file
	LogLevel    string // logrus level name
}

// Load reads configuration from a .env file, if present, and the environment.
func Load() *Config {
	_ = godotenv.Load() // Load .env file if present
	return &Config{
		DBPath:      getEnv("MYGARAGE_DB_PATH", DefaultDBPath),
		SessionPath: getEnv("MYGARAGE_SESSION_PATH", DefaultSessionPath),
		LogLevel:    getEnv("MYGARAGE_LOG_LEVEL", DefaultLogLevel),
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errors []string

	if strings.TrimSpace(c.DBPath) == "" {
		errors = append(errors, "store path cannot be empty")
	}
	if strings.TrimSpace(c.SessionPath) == "" {
		errors = append(errors, "session path cannot be empty")
	}
	if c.DBPath != "" && c.DBPath == c.SessionPath {
		errors = append(errors, fmt.Sprintf("store and session must be different files, both are '%s'", c.DBPath))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s'", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Level returns the parsed log level, falling back to warn.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.WarnLevel
	}
	return level
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
