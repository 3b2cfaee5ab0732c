// Package config loads the process-wide settings the engine needs at
// startup: where to listen, how to reach the language-model provider and
// web-search backend, and the defaults a run falls back to when a graph
// doesn't override them.
package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	ListenAddr string
	LogLevel   string
	LogFormat  string // "console" or "json"

	LMBaseURL    string
	LMAPIKey     string
	SearchURL    string
	SearchAPIKey string

	CORSOrigins []string

	DefaultMaxConcurrent int
	// DefaultMaxSteps is loaded from DEFAULT_MAX_STEPS but not passed to
	// the scheduler, whose step cap is its fixed 100-dispatch limit.
	DefaultMaxSteps int
}

func Load() *Config {
	return &Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "console"),

		LMBaseURL:    getEnv("LM_BASE_URL", "https://api.openai.com/v1"),
		LMAPIKey:     getEnv("LM_API_KEY", ""),
		SearchURL:    getEnv("SEARCH_URL", ""),
		SearchAPIKey: getEnv("SEARCH_API_KEY", ""),

		CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "*")),

		DefaultMaxConcurrent: getEnvInt("DEFAULT_MAX_CONCURRENT", 5),
		DefaultMaxSteps:      getEnvInt("DEFAULT_MAX_STEPS", 100),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
