package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates all settings for the client gateway.
type Config struct {
	Server  ServerConfig
	Backend BackendConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	backend, err := loadBackendConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Backend: backend}, nil
}

// ServerConfig describes the gateway's own HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "3000"
	}

	if strings.Contains(port, ":") {
		// Allow ":3000" or "127.0.0.1:3000" verbatim.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// BackendConfig describes the job-search backend the client consumes.
type BackendConfig struct {
	BaseURL        string
	SearchTopK     int
	RequestTimeout time.Duration
}

func loadBackendConfig() (BackendConfig, error) {
	topK := 3
	if override, err := parseOptionalIntEnv("SEARCH_TOP_K"); err != nil {
		return BackendConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return BackendConfig{}, fmt.Errorf("SEARCH_TOP_K must be positive, got %d", *override)
		}
		topK = *override
	}

	timeoutSeconds := 30
	if override, err := parseOptionalIntEnv("BACKEND_TIMEOUT"); err != nil {
		return BackendConfig{}, err
	} else if override != nil && *override > 0 {
		timeoutSeconds = *override
	}

	return BackendConfig{
		BaseURL:        getEnvOrDefault("BACKEND_BASE_URL", "http://localhost:8000"),
		SearchTopK:     topK,
		RequestTimeout: time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
