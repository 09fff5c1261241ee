package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Gemini AI
	GeminiAPIKey         string
	GeminiModel          string
	GeminiConcurrentReqs int // caps direct GeminiService callers; the chat session makes one call at a time
	GeminiTimeout        time.Duration

	// History storage
	HistoryBackend string // "file" | "redis" | "postgres" | "memory"
	HistoryPath    string
	HistoryKey     string
	HistoryLimit   int // 0 keeps every entry

	// Database
	DatabaseURL string

	// Redis
	RedisURL    string
	LiveUpdates string // "local" | "redis"

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		GeminiAPIKey:         mustGetEnv("GEMINI_API_KEY"),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 1),
		GeminiTimeout:        getEnvAsDurationOrDefault("GEMINI_TIMEOUT", 60*time.Second),
		HistoryBackend:       getEnvOrDefault("HISTORY_BACKEND", "file"),
		HistoryPath:          getEnvOrDefault("HISTORY_PATH", "./data/history.json"),
		HistoryKey:           getEnvOrDefault("HISTORY_KEY", "geminiHistory"),
		HistoryLimit:         getEnvAsIntOrDefault("HISTORY_LIMIT", 0),
		DatabaseURL:          getEnvOrDefault("DATABASE_URL", ""),
		RedisURL:             getEnvOrDefault("REDIS_URL", ""),
		LiveUpdates:          getEnvOrDefault("LIVE_UPDATES", "local"),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", "http://localhost:8080"),
	}

	if err := cfg.Validate(); err != nil {
		panic(err.Error())
	}

	return cfg
}

// Validate checks that the selected backends have the connection settings they need.
func (c *Config) Validate() error {
	switch c.HistoryBackend {
	case "file":
		if c.HistoryPath == "" {
			return fmt.Errorf("HISTORY_PATH is required for the file history backend")
		}
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis history backend")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres history backend")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown HISTORY_BACKEND %q", c.HistoryBackend)
	}

	switch c.LiveUpdates {
	case "local":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when LIVE_UPDATES=redis")
		}
	default:
		return fmt.Errorf("unknown LIVE_UPDATES %q", c.LiveUpdates)
	}

	if c.HistoryKey == "" {
		return fmt.Errorf("HISTORY_KEY must not be empty")
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("HISTORY_LIMIT must not be negative")
	}
	if c.GeminiConcurrentReqs < 1 {
		return fmt.Errorf("GEMINI_CONCURRENT_REQUESTS must be at least 1")
	}

	return nil
}

// NeedsRedis reports whether any component has to connect to Redis.
func (c *Config) NeedsRedis() bool {
	return c.HistoryBackend == "redis" || c.LiveUpdates == "redis"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
