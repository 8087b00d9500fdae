package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Environments
const (
	EnvDevelopment = "development"
	EnvTesting     = "testing"
	EnvProduction  = "production"
)

// Cache backends
const (
	CacheBackendAuto   = "auto"
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

var (
	logLevels     = []string{"DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL"}
	environments  = []string{EnvDevelopment, EnvTesting, EnvProduction}
	cacheBackends = []string{CacheBackendAuto, CacheBackendMemory, CacheBackendRedis}
)

type (
	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		RateLimitPerMinute        int
	}

	DatabaseConfig struct {
		URL          string
		MaxOpenConns int
	}

	CacheConfig struct {
		Enabled         bool
		Backend         string
		RedisURL        string
		DefaultTTL      time.Duration
		MaxEntries      int
		MaxSizeMB       int
		CleanupInterval time.Duration
	}

	LLMConfig struct {
		GroqAPIKey            string
		GroqBaseURL           string
		OpenAIAPIKey          string
		OpenAIBaseURL         string
		AnthropicAPIKey       string
		AnthropicBaseURL      string
		MaxConcurrentRequests int
		RequestTimeout        time.Duration
		MaxRetries            int
	}

	Config struct {
		Debug            bool
		AppName          string
		Build            string
		Env              string
		SecretKey        string
		LogLevel         string
		LogFile          string
		RollbarToken     string
		SendgridApiKey   string
		DefaultFromEmail mail.Address
		AlertEmail       string

		Server   ServerConfig
		Database DatabaseConfig
		Cache    CacheConfig
		LLM      LLMConfig
	}
)

// NewConfig loads the configuration from the environment (and optional .env files).
// The process exits if the configuration is invalid.
func NewConfig() *Config {
	loadDotEnv()

	conf, err := LoadConfig(newViper())
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return conf
}

func loadDotEnv() {
	env := strings.ToLower(os.Getenv("APP_ENV"))
	if env == "" {
		env = EnvDevelopment
	}
	paths := []string{".env", filepath.Join("config", ".env."+env)}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			// already set variables take precedence
			if err := godotenv.Load(path); err != nil {
				log.Fatalf("config.godotenv(%s): %v", path, err)
			}
		} else if !os.IsNotExist(err) {
			log.Fatalf("config.os.Stat(%s): %v", path, err)
		}
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("APP_NAME", "ScienceGPT")
	v.SetDefault("APP_VERSION", "3.0.0")
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("DEBUG", false)
	v.SetDefault("SECRET_KEY", "change-me-in-production")
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("LOG_FILE", "logs/sciencegpt.log")
	v.SetDefault("DEFAULT_FROM_EMAIL", "ScienceGPT <noreply@localhost>")
	v.SetDefault("ALERT_EMAIL", "")
	v.SetDefault("ROLLBAR_TOKEN", "")
	v.SetDefault("SENDGRID_API_KEY", "")

	v.SetDefault("SERVER_HOST", ":8000")
	v.SetDefault("DEBUG_HOST", ":4000")
	v.SetDefault("SHUTDOWN_TIMEOUT", 5*time.Second)
	v.SetDefault("JWT_EXPIRATION_DELTA", 7*24*time.Hour)
	v.SetDefault("JWT_REFRESH_EXPIRATION_DELTA", 4*time.Hour)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 100)

	v.SetDefault("DATABASE_URL", "sqlite://sciencegpt.db")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 20)

	v.SetDefault("ENABLE_CACHING", true)
	v.SetDefault("CACHE_BACKEND", CacheBackendAuto)
	v.SetDefault("REDIS_URL", "redis://localhost:6379")
	v.SetDefault("CACHE_TTL", 3600)
	v.SetDefault("CACHE_MAX_ENTRIES", 10000)
	v.SetDefault("CACHE_MAX_SIZE_MB", 500)
	v.SetDefault("CACHE_CLEANUP_INTERVAL", 5*time.Minute)

	v.SetDefault("GROQ_API_KEY", "")
	v.SetDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1/")
	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1/")
	v.SetDefault("ANTHROPIC_API_KEY", "")
	v.SetDefault("ANTHROPIC_BASE_URL", "https://api.anthropic.com/")
	v.SetDefault("MAX_CONCURRENT_REQUESTS", 50)
	v.SetDefault("REQUEST_TIMEOUT", 30)
	v.SetDefault("LLM_MAX_RETRIES", 2)

	v.AutomaticEnv()
	return v
}

// LoadConfig builds a Config out of the values held by v.
func LoadConfig(v *viper.Viper) (*Config, error) {
	conf := &Config{
		Debug:          v.GetBool("DEBUG"),
		AppName:        v.GetString("APP_NAME"),
		Build:          v.GetString("APP_VERSION"),
		Env:            strings.ToLower(v.GetString("APP_ENV")),
		SecretKey:      v.GetString("SECRET_KEY"),
		LogLevel:       strings.ToUpper(v.GetString("LOG_LEVEL")),
		LogFile:        v.GetString("LOG_FILE"),
		RollbarToken:   v.GetString("ROLLBAR_TOKEN"),
		SendgridApiKey: v.GetString("SENDGRID_API_KEY"),
		AlertEmail:     v.GetString("ALERT_EMAIL"),
		Server: ServerConfig{
			Host:                      v.GetString("SERVER_HOST"),
			DebugHost:                 v.GetString("DEBUG_HOST"),
			ShutdownTimeout:           v.GetDuration("SHUTDOWN_TIMEOUT"),
			JWTExpirationDelta:        v.GetDuration("JWT_EXPIRATION_DELTA"),
			JWTRefreshExpirationDelta: v.GetDuration("JWT_REFRESH_EXPIRATION_DELTA"),
			RateLimitPerMinute:        v.GetInt("RATE_LIMIT_PER_MINUTE"),
		},
		Database: DatabaseConfig{
			URL:          v.GetString("DATABASE_URL"),
			MaxOpenConns: v.GetInt("DATABASE_MAX_OPEN_CONNS"),
		},
		Cache: CacheConfig{
			Enabled:         v.GetBool("ENABLE_CACHING"),
			Backend:         strings.ToLower(v.GetString("CACHE_BACKEND")),
			RedisURL:        v.GetString("REDIS_URL"),
			DefaultTTL:      time.Duration(v.GetInt("CACHE_TTL")) * time.Second,
			MaxEntries:      v.GetInt("CACHE_MAX_ENTRIES"),
			MaxSizeMB:       v.GetInt("CACHE_MAX_SIZE_MB"),
			CleanupInterval: v.GetDuration("CACHE_CLEANUP_INTERVAL"),
		},
		LLM: LLMConfig{
			GroqAPIKey:            v.GetString("GROQ_API_KEY"),
			GroqBaseURL:           v.GetString("GROQ_BASE_URL"),
			OpenAIAPIKey:          v.GetString("OPENAI_API_KEY"),
			OpenAIBaseURL:         v.GetString("OPENAI_BASE_URL"),
			AnthropicAPIKey:       v.GetString("ANTHROPIC_API_KEY"),
			AnthropicBaseURL:      v.GetString("ANTHROPIC_BASE_URL"),
			MaxConcurrentRequests: v.GetInt("MAX_CONCURRENT_REQUESTS"),
			RequestTimeout:        time.Duration(v.GetInt("REQUEST_TIMEOUT")) * time.Second,
			MaxRetries:            v.GetInt("LLM_MAX_RETRIES"),
		},
	}

	from, err := mail.ParseAddress(v.GetString("DEFAULT_FROM_EMAIL"))
	if err != nil {
		return nil, errors.Wrap(err, "parsing DEFAULT_FROM_EMAIL")
	}
	conf.DefaultFromEmail = *from

	if err = conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) validate() error {
	if !contains(environments, c.Env) {
		return errors.Errorf("APP_ENV must be one of %v, got %q", environments, c.Env)
	}
	if !contains(logLevels, c.LogLevel) {
		return errors.Errorf("LOG_LEVEL must be one of %v, got %q", logLevels, c.LogLevel)
	}
	if !contains(cacheBackends, c.Cache.Backend) {
		return errors.Errorf("CACHE_BACKEND must be one of %v, got %q", cacheBackends, c.Cache.Backend)
	}
	if c.LLM.MaxConcurrentRequests < 1 {
		return errors.New("MAX_CONCURRENT_REQUESTS must be positive")
	}
	if c.Env == EnvProduction && c.SecretKey == "change-me-in-production" {
		return errors.New("SECRET_KEY must be set in production")
	}
	return nil
}

func (c *Config) IsTesting() bool    { return c.Env == EnvTesting }
func (c *Config) IsProduction() bool { return c.Env == EnvProduction }

// HasProviderKeys reports whether at least one LLM provider API key is configured.
func (c *Config) HasProviderKeys() bool {
	return c.LLM.GroqAPIKey != "" || c.LLM.OpenAIAPIKey != "" || c.LLM.AnthropicAPIKey != ""
}

// NewTestConfig returns a Config suitable for tests.
func NewTestConfig() *Config {
	v := newViper()
	v.Set("APP_ENV", EnvTesting)
	v.Set("DEBUG", true)
	v.Set("SECRET_KEY", "test-secret")
	v.Set("DATABASE_URL", "sqlite://:memory:")
	v.Set("CACHE_BACKEND", CacheBackendMemory)
	conf, err := LoadConfig(v)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return conf
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
