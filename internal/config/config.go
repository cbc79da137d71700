package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every tunable for a battle node. Values come from the
// environment with an optional .env file on top.
type Config struct {
	// Networking
	UDPPort    int `env:"UDP_PORT" default:"9000"`
	StatusPort int `env:"STATUS_PORT" default:"0"` // 0 disables the status API

	// Reliability
	AckTimeout  time.Duration `env:"ACK_TIMEOUT" default:"500ms"`
	MaxAttempts int           `env:"MAX_ATTEMPTS" default:"3"`

	// Battle data
	PokedexPath string `env:"POKEDEX_PATH" default:"data/pokedex.csv"`

	// Chat flood protection; rate is messages per minute
	ChatRate  int `env:"CHAT_RATE" default:"30"`
	ChatBurst int `env:"CHAT_BURST" default:"5"`

	// Development
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env file is fine; system env vars still apply.
	if err := godotenv.Load(".env"); err != nil {
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	config := &Config{}

	if err := loadEnvInt(&config.UDPPort, "UDP_PORT", 9000); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.StatusPort, "STATUS_PORT", 0); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.AckTimeout, "ACK_TIMEOUT", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.MaxAttempts, "MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.PokedexPath, "POKEDEX_PATH", "data/pokedex.csv"); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.ChatRate, "CHAT_RATE", 30); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.ChatBurst, "CHAT_BURST", 5); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.LogLevel, "LOG_LEVEL", "info"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.LogFormat, "LOG_FORMAT", "text"); err != nil {
		return nil, err
	}
	return config, nil
}

// Helper functions for type conversion and validation
func loadEnvString(target *string, key, defaultValue string) error {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

// Validate performs validation on the loaded configuration.
func (c *Config) Validate() error {
	var errors []string

	if c.UDPPort < 1 || c.UDPPort > 65535 {
		errors = append(errors, "UDP_PORT must be between 1 and 65535")
	}
	if c.StatusPort < 0 || c.StatusPort > 65535 {
		errors = append(errors, "STATUS_PORT must be between 0 and 65535")
	}
	if c.AckTimeout <= 0 {
		errors = append(errors, "ACK_TIMEOUT must be positive")
	}
	if c.MaxAttempts < 1 {
		errors = append(errors, "MAX_ATTEMPTS must be at least 1")
	}
	if c.ChatRate < 1 {
		errors = append(errors, "CHAT_RATE must be at least 1")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}
	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}
	return nil
}

// BindAddr is the UDP listen address for a host node.
func (c *Config) BindAddr() string {
	return fmt.Sprintf(":%d", c.UDPPort)
}

// StatusEnabled reports whether the status API should be served.
func (c *Config) StatusEnabled() bool {
	return c.StatusPort > 0
}

// Helper function to check if slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
