package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultDashScopeURL = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"
	defaultModel        = "qwen-turbo"
)

type Config struct {
	// Server
	Port string
	Env  string

	// DashScope provider
	DashScopeAPIKey  string
	DashScopeBaseURL string
	DashScopeModel   string
	ProviderTimeout  time.Duration

	// Chat behaviour
	UsePromptTemplate bool
	ReplyFilter       bool

	// Database (optional, diagnostics log only)
	DatabaseURL   string
	MigrationsDir string
	LogRetention  time.Duration

	// Redis (optional, session guard + hub pub/sub)
	RedisURL string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:              getEnvOrDefault("PORT", "8080"),
		Env:               getEnvOrDefault("ENV", "development"),
		DashScopeAPIKey:   mustGetEnv("DASHSCOPE_API_KEY"),
		DashScopeBaseURL:  getEnvOrDefault("DASHSCOPE_BASE_URL", defaultDashScopeURL),
		DashScopeModel:    getEnvOrDefault("DASHSCOPE_MODEL", defaultModel),
		ProviderTimeout:   time.Duration(getEnvAsIntOrDefault("PROVIDER_TIMEOUT_SECONDS", 60)) * time.Second,
		UsePromptTemplate: getEnvAsBoolOrDefault("USE_PROMPT_TEMPLATE", true),
		ReplyFilter:       getEnvAsBoolOrDefault("REPLY_FILTER", false),
		DatabaseURL:       getEnvOrDefault("DATABASE_URL", ""),
		MigrationsDir:     getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		LogRetention:      time.Duration(getEnvAsIntOrDefault("COMPLETION_LOG_RETENTION_DAYS", 7)) * 24 * time.Hour,
		RedisURL:          getEnvOrDefault("REDIS_URL", ""),
		FrontendURL:       getEnvOrDefault("FRONTEND_URL", "http://localhost:3000"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := strings.TrimSpace(os.Getenv(key))
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
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
