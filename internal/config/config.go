package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Server side
	GeminiAPIKey string `yaml:"gemini_api_key"`
	DatabaseURL  string `yaml:"database_url"`
	HTTPPort     string `yaml:"http_port"`
	JWTSecret    string `yaml:"jwt_secret"`
	DocumentPath string `yaml:"document_path"`
	ImagesDir    string `yaml:"images_dir"`
	HistoryTurns int    `yaml:"history_turns"`

	// Client side
	AssistantURL   string        `yaml:"assistant_url"`
	AssistantToken string        `yaml:"assistant_token"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

func defaults() Config {
	return Config{
		DatabaseURL:  "assistant.db",
		HTTPPort:     "8080",
		DocumentPath: "data.docx",
		ImagesDir:    "images",
		HistoryTurns: 5,
		AssistantURL: "http://localhost:8080",
		LogLevel:     "INFO",
		LogFile:      filepath.Join(os.TempDir(), "assistant-chat.log"),
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// ASSISTANT_CONFIG and the environment, in increasing order of precedence.
// A .env file in the working directory is loaded into the environment first.
func Load() (*Config, error) {
	_ = godotenv.Load() // Load .env file if it exists

	cfg := defaults()
	if path := os.Getenv("ASSISTANT_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.GeminiAPIKey = getEnv("GEMINI_API_KEY", cfg.GeminiAPIKey)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.DocumentPath = getEnv("DOCUMENT_PATH", cfg.DocumentPath)
	cfg.ImagesDir = getEnv("IMAGES_DIR", cfg.ImagesDir)
	cfg.AssistantURL = getEnv("ASSISTANT_URL", cfg.AssistantURL)
	cfg.AssistantToken = getEnv("ASSISTANT_TOKEN", cfg.AssistantToken)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)

	var err error
	if cfg.HistoryTurns, err = getEnvAsInt("HISTORY_TURNS", cfg.HistoryTurns); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getEnvAsDuration("REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return nil, err
	}
	if cfg.HistoryTurns < 0 {
		cfg.HistoryTurns = 0
	}

	return &cfg, nil
}

// ValidateServer reports settings the HTTP service cannot run without.
func (c *Config) ValidateServer() error {
	if c.GeminiAPIKey == "" {
		return errors.New("GEMINI_API_KEY environment variable is required")
	}
	if c.HTTPPort == "" {
		return errors.New("HTTP_PORT must not be empty")
	}
	return nil
}

// AuthEnabled reports whether API routes require a bearer token.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, valueStr, err)
	}
	return value, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, valueStr, err)
	}
	return value, nil
}
