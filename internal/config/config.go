// Package config provides configuration management for the persona scanner.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Chain     ChainConfig
	Etherscan EtherscanConfig
	Zerion    ZerionConfig
	Analysis  AnalysisConfig
	Cache     CacheConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// ChainConfig holds the configured chain
type ChainConfig struct {
	ID string
}

// EtherscanConfig holds Etherscan API configuration
type EtherscanConfig struct {
	APIKey            string
	BaseURL           string
	RequestsPerSecond float64
}

// ZerionConfig holds Zerion API configuration
type ZerionConfig struct {
	APIKey  string
	BaseURL string
}

// AnalysisConfig holds wallet analysis configuration
type AnalysisConfig struct {
	Deadline      time.Duration // wall-clock ceiling for a whole wallet analysis
	HTTPTimeout   time.Duration // per-request timeout for outbound calls
	RetryAttempts int
}

// CacheConfig holds the optional Redis price cache configuration
type CacheConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	PriceTTL time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Chain: ChainConfig{
			ID: getEnv("CHAIN_ID", "base"),
		},
		Etherscan: EtherscanConfig{
			APIKey:            getEnv("ETHERSCAN_API_KEY", ""),
			BaseURL:           getEnv("ETHERSCAN_BASE_URL", "https://api.etherscan.io/v2/api"),
			RequestsPerSecond: getEnvAsFloat("ETHERSCAN_RPS", 3.0),
		},
		Zerion: ZerionConfig{
			APIKey:  getEnv("ZERION_API_KEY", ""),
			BaseURL: getEnv("ZERION_BASE_URL", "https://api.zerion.io/v1"),
		},
		Analysis: AnalysisConfig{
			Deadline:      getEnvAsDuration("ANALYSIS_DEADLINE", 120*time.Second),
			HTTPTimeout:   getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),
			RetryAttempts: getEnvAsInt("RETRY_ATTEMPTS", 4),
		},
		Cache: CacheConfig{
			Enabled:  getEnvAsBool("PRICE_CACHE_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			PriceTTL: getEnvAsDuration("PRICE_CACHE_TTL", 60*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
