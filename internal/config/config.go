package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Port          string
	DataDir       string // root for core_menus.csv and the menus/ directory
	ContainerSize int    // slots per rendered container, multiple of 9

	// Auth configuration
	JWTSecret string

	// Placeholder evaluator configuration
	EvaluatorEnabled bool

	// Per-connection click throttle (token bucket)
	ClickRatePerSecond float64
	ClickBurst         int

	// Session janitor sweep interval
	JanitorInterval time.Duration

	// Optional user-facing message overrides
	MessagesFile string
}

// Messages are the user-facing denial/error strings, overridable from a
// YAML file so operators can reword them without a rebuild.
type Messages struct {
	MenuNotFound         string `yaml:"menu_not_found"`
	PermissionDenied     string `yaml:"permission_denied"`
	ConditionNotMet      string `yaml:"condition_not_met"`
	EvaluatorUnavailable string `yaml:"evaluator_unavailable"`
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "3001"),
		DataDir:       getEnv("MENU_DATA_DIR", "./data"),
		ContainerSize: getIntEnv("MENU_CONTAINER_SIZE", 54),

		JWTSecret: getEnv("JWT_SECRET", ""),

		EvaluatorEnabled: getBoolEnv("PLACEHOLDER_EVALUATOR_ENABLED", true),

		ClickRatePerSecond: getFloatEnv("CLICK_RATE_PER_SECOND", 20),
		ClickBurst:         getIntEnv("CLICK_BURST", 10),

		JanitorInterval: getDurationEnv("JANITOR_INTERVAL", 30*time.Second),

		MessagesFile: getEnv("MESSAGES_FILE", ""),
	}
}

// DefaultMessages returns the built-in user-facing strings.
func DefaultMessages() *Messages {
	return &Messages{
		MenuNotFound:         "That menu does not exist.",
		PermissionDenied:     "You don't have permission to open this menu.",
		ConditionNotMet:      "You cannot open this menu right now.",
		EvaluatorUnavailable: "Cannot check permission for this menu.",
	}
}

// LoadMessages loads message overrides from a YAML file. Fields left empty
// in the file keep their defaults.
func LoadMessages(filePath string) (*Messages, error) {
	messages := DefaultMessages()
	if filePath == "" {
		return messages, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read messages file: %w", err)
	}

	var overrides Messages
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse messages YAML: %w", err)
	}

	if overrides.MenuNotFound != "" {
		messages.MenuNotFound = overrides.MenuNotFound
	}
	if overrides.PermissionDenied != "" {
		messages.PermissionDenied = overrides.PermissionDenied
	}
	if overrides.ConditionNotMet != "" {
		messages.ConditionNotMet = overrides.ConditionNotMet
	}
	if overrides.EvaluatorUnavailable != "" {
		messages.EvaluatorUnavailable = overrides.EvaluatorUnavailable
	}
	return messages, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
