package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kapu/sitcom-match-go/internal/constants"
	"github.com/kapu/sitcom-match-go/internal/util"
)

type Config struct {
	Server    ServerConfig
	Neynar    NeynarConfig
	Farcaster FarcasterConfig
	QuickAuth QuickAuthConfig
	Groq      ProviderKeyConfig
	OpenAI    ProviderKeyConfig
	Gemini    ProviderKeyConfig
	LLM       LLMConfig
	Analysis  AnalysisConfig
	Redis     RedisConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port           int
	Mode           string
	Diagnostics    bool
	AllowedOrigins []string
}

type NeynarConfig struct {
	APIKey  string
	BaseURL string
}

type FarcasterConfig struct {
	Timeout    time.Duration
	FetchLimit int
	CacheTTL   time.Duration
}

type QuickAuthConfig struct {
	Domain  string
	Issuer  string
	JWKSURL string
}

type ProviderKeyConfig struct {
	APIKey string
	Model  string
}

type LLMConfig struct {
	Timeout        time.Duration
	EnableFallback bool
}

type AnalysisConfig struct {
	Strategy     string
	Fallback     bool
	FallbackSeed int64
	CatalogFile  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Enabled reports whether the bundle cache should talk to Redis.
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnvInt("PORT", 3000),
			Mode:        getEnv("GIN_MODE", "release"),
			Diagnostics: getEnvBool("DIAGNOSTICS", false),
			AllowedOrigins: util.ParseCommaSeparated(getEnv("CORS_ALLOWED_ORIGINS",
				"http://localhost:3000,http://127.0.0.1:3000,http://localhost:5173")),
		},
		Neynar: NeynarConfig{
			APIKey:  getEnv("NEYNAR_API_KEY", ""),
			BaseURL: getEnv("NEYNAR_BASE_URL", constants.FarcasterConfig.DefaultBaseURL),
		},
		Farcaster: FarcasterConfig{
			Timeout:    getEnvDuration("FARCASTER_TIMEOUT", constants.FarcasterConfig.DefaultTimeout),
			FetchLimit: getEnvInt("CAST_FETCH_LIMIT", constants.FarcasterConfig.DefaultFetchLimit),
			CacheTTL:   getEnvDuration("CACHE_TTL", constants.FarcasterConfig.BundleCacheTTL),
		},
		QuickAuth: QuickAuthConfig{
			Domain:  getEnv("QUICK_AUTH_DOMAIN", ""),
			Issuer:  getEnv("QUICK_AUTH_ISSUER", constants.QuickAuthConfig.DefaultIssuer),
			JWKSURL: getEnv("QUICK_AUTH_JWKS_URL", constants.QuickAuthConfig.DefaultJWKSURL),
		},
		Groq: ProviderKeyConfig{
			APIKey: getEnv("GROQ_API_KEY", ""),
			Model:  getEnv("GROQ_MODEL", constants.LLMConfig.DefaultGroqModel),
		},
		OpenAI: ProviderKeyConfig{
			APIKey: getEnv("OPENAI_API_KEY", ""),
			Model:  getEnv("OPENAI_MODEL", constants.LLMConfig.DefaultOpenAIModel),
		},
		Gemini: ProviderKeyConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", constants.LLMConfig.DefaultGeminiModel),
		},
		LLM: LLMConfig{
			Timeout:        getEnvDuration("LLM_TIMEOUT", constants.LLMConfig.DefaultTimeout),
			EnableFallback: getEnvBool("LLM_ENABLE_FALLBACK", true),
		},
		Analysis: AnalysisConfig{
			Strategy:     strings.ToLower(getEnv("ANALYSIS_STRATEGY", "json")),
			Fallback:     getEnvBool("ANALYSIS_FALLBACK", true),
			FallbackSeed: getEnvInt64("ANALYSIS_FALLBACK_SEED", 0),
			CatalogFile:  getEnv("CATALOG_FILE", ""),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
			File:   getEnv("LOG_FILE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if err := validateTimeout("LLM_TIMEOUT", c.LLM.Timeout); err != nil {
		return err
	}
	if err := validateTimeout("FARCASTER_TIMEOUT", c.Farcaster.Timeout); err != nil {
		return err
	}
	if c.Farcaster.FetchLimit <= 0 || c.Farcaster.FetchLimit > constants.FarcasterConfig.MaxFetchLimit {
		return fmt.Errorf("CAST_FETCH_LIMIT must be between 1 and %d", constants.FarcasterConfig.MaxFetchLimit)
	}
	switch c.Analysis.Strategy {
	case "json", "triple":
	default:
		return fmt.Errorf("ANALYSIS_STRATEGY must be json or triple, got %q", c.Analysis.Strategy)
	}
	if c.QuickAuth.Issuer == "" || c.QuickAuth.JWKSURL == "" {
		return fmt.Errorf("QUICK_AUTH_ISSUER and QUICK_AUTH_JWKS_URL are required")
	}
	return nil
}

// FallbackEnabled reports whether the analyze route substitutes a local
// result for a failed completion. Diagnostics mode always surfaces the error.
func (c *Config) FallbackEnabled() bool {
	return c.Analysis.Fallback && !c.Server.Diagnostics
}

// KeyStatus describes one secret without revealing any part of it.
type KeyStatus struct {
	Name   string `json:"name"`
	Exists bool   `json:"exists"`
	Length int    `json:"length"`
}

// KeyReport lists which provider credentials are configured.
func (c *Config) KeyReport() []KeyStatus {
	entries := []struct {
		name  string
		value string
	}{
		{"NEYNAR_API_KEY", c.Neynar.APIKey},
		{"GROQ_API_KEY", c.Groq.APIKey},
		{"OPENAI_API_KEY", c.OpenAI.APIKey},
		{"GEMINI_API_KEY", c.Gemini.APIKey},
		{"REDIS_PASSWORD", c.Redis.Password},
	}

	report := make([]KeyStatus, 0, len(entries))
	for _, e := range entries {
		report = append(report, KeyStatus{Name: e.name, Exists: e.value != "", Length: len(e.value)})
	}
	return report
}

func validateTimeout(name string, d time.Duration) error {
	if d < constants.LLMConfig.MinTimeout || d > constants.LLMConfig.MaxTimeout {
		return fmt.Errorf("%s must be between %s and %s, got %s",
			name, constants.LLMConfig.MinTimeout, constants.LLMConfig.MaxTimeout, d)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("20s") or plain seconds ("20").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
