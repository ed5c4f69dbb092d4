package config

import (
	"os"
	"strconv"
)

// AppConfig represents the application configuration
type AppConfig struct {
	Port           string
	AppURL         string
	MongoURI       string
	MongoDatabase  string
	GatewayDBPath  string
	OpenSearchURL  string
	OpenSearchUser string
	OpenSearchPass string
	EnableLogging  bool
	LoggingLevel   string
}

var appConfigInstance *AppConfig

// GetAppConfig returns the application configuration
func GetAppConfig() *AppConfig {
	if appConfigInstance == nil {
		appConfigInstance = &AppConfig{
			Port:           GetEnv("APP_PORT", "9990"),
			AppURL:         GetEnv("APP_URL", "http://localhost:9990"),
			MongoURI:       GetEnv("MONGO_URI", "mongodb://localhost:27017"),
			MongoDatabase:  GetEnv("MONGO_DB", "shop"),
			GatewayDBPath:  GetEnv("GATEWAY_DB_PATH", "data/gateways.db"),
			OpenSearchURL:  GetEnv("OPENSEARCH_URL", "http://localhost:9200"),
			OpenSearchUser: GetEnv("OPENSEARCH_USER", ""),
			OpenSearchPass: GetEnv("OPENSEARCH_PASSWORD", ""),
			EnableLogging:  GetBoolEnv("ENABLE_OPENSEARCH_LOGGING", false),
			LoggingLevel:   GetEnv("LOGGING_LEVEL", "info"),
		}
	}
	return appConfigInstance
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBoolEnv returns the boolean value of an environment variable or a default value
func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetIntEnv returns the integer value of an environment variable or a default value
func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
