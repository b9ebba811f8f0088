package logging

import (
	"os"
	"strings"
)

// Environment types
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// GetConfigFromEnv creates a logger configuration based on environment variables
func GetConfigFromEnv() Config {
	config := DefaultConfig

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		config.Environment = strings.ToLower(env)
	}

	// Environment-specific defaults, overridden by explicit settings below
	switch config.Environment {
	case EnvProduction:
		config.Format = "json"
		config.Level = "info"
		config.AddSource = false
	case EnvTest:
		config.Format = "text"
		config.Level = "debug"
		config.AddSource = false
	case EnvDevelopment:
		config.Format = "text"
		config.Level = "debug"
		config.AddSource = true
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Level = strings.ToLower(level)
	}

	if format := os.Getenv("LOG_FORMAT"); format != "" {
		config.Format = strings.ToLower(format)
	}

	if addSource := os.Getenv("LOG_ADD_SOURCE"); addSource != "" {
		config.AddSource = strings.ToLower(addSource) == "true"
	}

	return config
}
