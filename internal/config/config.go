package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

var (
	LLMProviders   = []string{"anthropic", "openai", "venice", "ollama"}
	ImageProviders = []string{"openai", "venice"}
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	LLMProvider      string
	ImageProvider    string
	ModelName        string
	BackendModelName string
	ImageModelName   string
	AnthropicAPIKey  string
	OpenAIAPIKey     string
	VeniceAPIKey     string
	OllamaBaseURL    string

	RedisURL string

	RequestTimeout   time.Duration
	LLMMaxRetries    int
	AutoFixDefault   bool
	ImageConcurrency int
	// RulesFile replaces the embedded format rule-set when set.
	RulesFile string
}

// Load reads the configuration from the environment. Every malformed value is
// reported, not just the first.
func Load() (*Config, error) {
	var errs []error

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),

		LLMProvider:      strings.ToLower(getEnv("LLM_PROVIDER", "anthropic")),
		ModelName:        os.Getenv("MODEL_NAME"),
		BackendModelName: os.Getenv("BACKEND_MODEL_NAME"),
		ImageModelName:   os.Getenv("IMAGE_MODEL_NAME"),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		VeniceAPIKey:     os.Getenv("VENICE_API_KEY"),
		OllamaBaseURL:    os.Getenv("OLLAMA_BASE_URL"),

		RedisURL:  getEnv("REDIS_URL", "localhost:6379"),
		RulesFile: os.Getenv("RULES_FILE"),
	}

	defaultImage := "openai"
	if cfg.LLMProvider == "venice" {
		defaultImage = "venice"
	}
	cfg.ImageProvider = strings.ToLower(getEnv("IMAGE_PROVIDER", defaultImage))

	if !slices.Contains(LLMProviders, cfg.LLMProvider) {
		errs = append(errs, fmt.Errorf("LLM_PROVIDER %q is not one of %v", cfg.LLMProvider, LLMProviders))
	}
	if !slices.Contains(ImageProviders, cfg.ImageProvider) {
		errs = append(errs, fmt.Errorf("IMAGE_PROVIDER %q is not one of %v", cfg.ImageProvider, ImageProviders))
	}
	if cfg.ModelName == "" && cfg.LLMProvider == "anthropic" {
		cfg.ModelName = "claude-sonnet-4-5"
	}

	var err error
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 90*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.LLMMaxRetries, err = getInt("LLM_MAX_RETRIES", 2); err != nil {
		errs = append(errs, err)
	}
	if cfg.ImageConcurrency, err = getInt("IMAGE_CONCURRENCY", 4); err != nil {
		errs = append(errs, err)
	}
	if cfg.AutoFixDefault, err = getBool("AUTO_FIX_DEFAULT", true); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// RequireProviderKeys checks that the selected providers have credentials.
// Only processes that call a model need them.
func (c *Config) RequireProviderKeys() error {
	var errs []error
	need := func(provider string) {
		switch provider {
		case "anthropic":
			if c.AnthropicAPIKey == "" {
				errs = append(errs, errors.New("ANTHROPIC_API_KEY is required for the anthropic provider"))
			}
		case "openai":
			if c.OpenAIAPIKey == "" {
				errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
			}
		case "venice":
			if c.VeniceAPIKey == "" {
				errs = append(errs, errors.New("VENICE_API_KEY is required for the venice provider"))
			}
		}
	}
	need(c.LLMProvider)
	if c.ImageProvider != c.LLMProvider {
		need(c.ImageProvider)
	}
	return errors.Join(errs...)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Plain numbers are seconds.
		secs, nerr := strconv.Atoi(v)
		if nerr != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		d = time.Duration(secs) * time.Second
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
