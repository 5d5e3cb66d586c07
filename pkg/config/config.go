package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Embedding  EmbeddingConfig
	Redis      RedisConfig
	Knowledge  KnowledgeConfig
	Analytics  AnalyticsConfig
	RateLimit  RateLimitConfig
	Validation ValidationConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	AllowedOrigins []string
	Development    bool
}

type EmbeddingConfig struct {
	// Provider is "local" (feature hashing, no network) or "openai".
	Provider   string
	APIKey     string
	BaseURL    string
	Model      string
	Dimension  int
	TimeoutSec int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type KnowledgeConfig struct {
	// Path to a YAML knowledge file. Empty means the built-in documents.
	Path string
	TopK int
}

type AnalyticsConfig struct {
	HistoryCapacity     int
	RollingWindow       int
	AgentSampleCapacity int
	FeedbackCapacity    int
	SessionHistory      int
	TopQueries          int
}

type RateLimitConfig struct {
	Enabled              bool
	MaxRequestsPerMinute int
}

type ValidationConfig struct {
	MaxQueryLength int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/support-router")

	return load(v)
}

// LoadFile reads configuration from an explicit path, still honoring env overrides.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("SUPPORT_ROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "local":
	case "openai":
		if c.Embedding.APIKey == "" {
			return errors.New("embedding.apiKey is required for the openai provider")
		}
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}

	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Knowledge.TopK <= 0 {
		return fmt.Errorf("knowledge.topK must be positive, got %d", c.Knowledge.TopK)
	}
	if c.Analytics.HistoryCapacity <= 0 || c.Analytics.RollingWindow <= 0 {
		return errors.New("analytics capacities must be positive")
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.bodyLimit", 1048576)
	v.SetDefault("server.allowedOrigins", []string{"*"})
	v.SetDefault("server.development", false)

	v.SetDefault("embedding.provider", "local")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimension", 384)
	v.SetDefault("embedding.timeoutSec", 15)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttlSec", 86400)

	v.SetDefault("knowledge.topK", 3)

	v.SetDefault("analytics.historyCapacity", 10000)
	v.SetDefault("analytics.rollingWindow", 1000)
	v.SetDefault("analytics.agentSampleCapacity", 10000)
	v.SetDefault("analytics.feedbackCapacity", 1000)
	v.SetDefault("analytics.sessionHistory", 1000)
	v.SetDefault("analytics.topQueries", 10)

	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.maxRequestsPerMinute", 120)

	v.SetDefault("validation.maxQueryLength", 1000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
