package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	Server struct {
		Port         string
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
		LogLevel     string
	}

	WeatherAPI struct {
		APIKey  string
		Timeout time.Duration
	}

	Database struct {
		URL string
	}

	Auth struct {
		BaseURL     string
		AnonKey     string
		RedirectURL string
		Timeout     time.Duration
	}

	LocalStore struct {
		Path string
	}

	Search struct {
		Debounce       time.Duration
		MinQueryLength int
	}

	RecentSearches struct {
		MaxEntries int
	}

	Widget struct {
		RefreshSpec string
	}

	CircuitBreaker struct {
		Timeout time.Duration
	}
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		zap.L().Info("No .env file found, using environment variables")
	}

	cfg := &Config{}

	// Server configuration
	cfg.Server.Port = getEnv("PORT", "8080")
	cfg.Server.ReadTimeout = parseDuration(getEnv("READ_TIMEOUT", "10s"))
	cfg.Server.WriteTimeout = parseDuration(getEnv("WRITE_TIMEOUT", "10s"))
	cfg.Server.LogLevel = getEnv("LOG_LEVEL", "info")

	// Weather provider configuration
	cfg.WeatherAPI.APIKey = getEnv("OPENWEATHER_API_KEY", "")
	cfg.WeatherAPI.Timeout = parseDuration(getEnv("WEATHER_API_TIMEOUT", "10s"))

	// Favorites database
	cfg.Database.URL = getEnv("DATABASE_URL", "")

	// Auth provider configuration
	cfg.Auth.BaseURL = getEnv("AUTH_BASE_URL", "")
	cfg.Auth.AnonKey = getEnv("AUTH_ANON_KEY", "")
	cfg.Auth.RedirectURL = getEnv("AUTH_RESET_REDIRECT_URL", "glasscast://reset-password")
	cfg.Auth.Timeout = parseDuration(getEnv("AUTH_TIMEOUT", "10s"))

	// Local state store (recent searches, preferences, widget snapshot)
	cfg.LocalStore.Path = getEnv("LOCAL_STORE_PATH", "glasscast.db")

	// Search configuration
	cfg.Search.Debounce = parseDuration(getEnv("SEARCH_DEBOUNCE", "350ms"))
	cfg.Search.MinQueryLength = parseInt(getEnv("SEARCH_MIN_QUERY_LENGTH", "2"))

	// Recent searches
	cfg.RecentSearches.MaxEntries = parseInt(getEnv("RECENT_SEARCHES_MAX", "10"))

	// Widget refresh cadence
	cfg.Widget.RefreshSpec = getEnv("WIDGET_REFRESH_SPEC", "@every 30m")

	// Circuit breaker configuration
	cfg.CircuitBreaker.Timeout = parseDuration(getEnv("CIRCUIT_BREAKER_TIMEOUT", "30s"))

	// Required credentials are a startup hard failure, everything else
	// degrades at the call site.
	if cfg.WeatherAPI.APIKey == "" {
		return nil, fmt.Errorf("OPENWEATHER_API_KEY is required")
	}
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Auth.BaseURL == "" {
		return nil, fmt.Errorf("AUTH_BASE_URL is required")
	}
	if cfg.Auth.AnonKey == "" {
		return nil, fmt.Errorf("AUTH_ANON_KEY is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(value string) time.Duration {
	duration, err := time.ParseDuration(value)
	if err != nil {
		zap.L().Warn("Failed to parse duration", zap.String("value", value), zap.Error(err))
		return 0
	}
	return duration
}

func parseInt(value string) int {
	intValue, err := strconv.Atoi(value)
	if err != nil {
		zap.L().Warn("Failed to parse int", zap.String("value", value), zap.Error(err))
		return 0
	}
	return intValue
}
