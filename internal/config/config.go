// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"circlepool/pkg/db" // Import db package for its Config struct
)

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort string
	DB         db.Config

	// ClassifierEndpoint is the URL of the text-generation service used for
	// expense classification and insights. Empty disables classification;
	// expenses then stay Unclassified.
	ClassifierEndpoint string
	ClassifierAPIKey   string

	// InsightsCacheSize and InsightsCacheTTL bound the per-user insights
	// cache.
	InsightsCacheSize int
	InsightsCacheTTL  time.Duration
}

// LoadConfig loads configuration from environment variables.
// It returns an AppConfig instance or an error if any required variable is missing or invalid.
func LoadConfig() (*AppConfig, error) {
	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080" // Default port
	}

	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost" // Default to localhost for local development
	}
	dbPortStr := os.Getenv("DB_PORT")
	if dbPortStr == "" {
		dbPortStr = "5432" // Default PostgreSQL port
	}
	dbPort, err := strconv.Atoi(dbPortStr)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	dbUser := os.Getenv("DB_USER")
	if dbUser == "" {
		dbUser = "user" // Default user for local development
	}
	dbPassword := os.Getenv("DB_PASSWORD")
	if dbPassword == "" {
		dbPassword = "password" // Default password for local development
	}
	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "circlepooldb" // Default database name for local development
	}
	dbSSLMode := os.Getenv("DB_SSLMODE")
	if dbSSLMode == "" {
		dbSSLMode = "disable" // Default to disable for local development
	}

	cacheSizeStr := os.Getenv("INSIGHTS_CACHE_SIZE")
	if cacheSizeStr == "" {
		cacheSizeStr = "1024"
	}
	cacheSize, err := strconv.Atoi(cacheSizeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid INSIGHTS_CACHE_SIZE: %w", err)
	}
	cacheTTLStr := os.Getenv("INSIGHTS_CACHE_TTL")
	if cacheTTLStr == "" {
		cacheTTLStr = "6h"
	}
	cacheTTL, err := time.ParseDuration(cacheTTLStr)
	if err != nil {
		return nil, fmt.Errorf("invalid INSIGHTS_CACHE_TTL: %w", err)
	}

	return &AppConfig{
		ServerPort: serverPort,
		DB: db.Config{
			Host:     dbHost,
			Port:     dbPort,
			User:     dbUser,
			Password: dbPassword,
			DBName:   dbName,
			SSLMode:  dbSSLMode,
		},
		ClassifierEndpoint: os.Getenv("CLASSIFIER_ENDPOINT"),
		ClassifierAPIKey:   os.Getenv("CLASSIFIER_API_KEY"),
		InsightsCacheSize:  cacheSize,
		InsightsCacheTTL:   cacheTTL,
	}, nil
}
