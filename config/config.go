package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/productmatch/backend/internal/domain"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Matching MatchingConfig `mapstructure:"matching"`
	Index    IndexConfig    `mapstructure:"index"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string        `mapstructure:"port" validate:"required,numeric"`
	Environment    string        `mapstructure:"environment" validate:"oneof=development test production"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
}

// MatchingConfig holds the matching engine parameters
type MatchingConfig struct {
	GoodMatchThreshold float64  `mapstructure:"good_match_threshold" validate:"gt=0"`
	ExactMatchScore    float64  `mapstructure:"exact_match_score" validate:"gt=0"`
	InputFields        []string `mapstructure:"input_fields" validate:"min=1,dive,required"`
	BatchWorkers       int      `mapstructure:"batch_workers" validate:"gte=1,lte=256"`
}

// IndexConfig selects and configures the reference catalog backend
type IndexConfig struct {
	Type        string            `mapstructure:"type" validate:"oneof=memory sqlite postgres http"`
	FixturePath string            `mapstructure:"fixture_path"`
	Memory      MemoryIndexConfig `mapstructure:"memory"`
	SQLitePath  string            `mapstructure:"sqlite_path"`
	PostgresDSN string            `mapstructure:"postgres_dsn"`
	BaseURL     string            `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey      string            `mapstructure:"api_key"`
	RateLimit   float64           `mapstructure:"rate_limit" validate:"gte=0"`
	// SearchLimit is the default hit count of the product search endpoint
	SearchLimit int           `mapstructure:"search_limit" validate:"gte=1,lte=50"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// MemoryIndexConfig tunes the ranking of the in-memory fixture index. The
// defaults put its scores on the scale matching.good_match_threshold expects.
type MemoryIndexConfig struct {
	K1           float64 `mapstructure:"k1" validate:"gt=0"`
	B            float64 `mapstructure:"b" validate:"gte=0,lte=1"`
	Boost        float64 `mapstructure:"boost" validate:"gt=0"`
	MinimumMatch float64 `mapstructure:"minimum_match" validate:"gte=0,lte=1"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type" validate:"oneof=none memory redis"`
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

// KafkaConfig holds stream worker settings
type KafkaConfig struct {
	Brokers     []string `mapstructure:"brokers"`
	InputTopic  string   `mapstructure:"input_topic"`
	OutputTopic string   `mapstructure:"output_topic"`
	GroupID     string   `mapstructure:"group_id"`
}

// TracingConfig selects the span exporter
type TracingConfig struct {
	Exporter    string        `mapstructure:"exporter" validate:"oneof=none otlp"`
	Protocol    string        `mapstructure:"protocol" validate:"oneof=grpc http"`
	Endpoint    string        `mapstructure:"endpoint"`
	Insecure    bool          `mapstructure:"insecure"`
	ServiceName string        `mapstructure:"service_name" validate:"required"`
	SampleRatio float64       `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// Load loads configuration from a .env file, environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/productmatch/")

	// PRODUCTMATCH_INDEX_TYPE overrides index.type
	v.SetEnvPrefix("PRODUCTMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; env vars and defaults are enough
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads .env from the working directory. Variables already set
// in the environment win; a missing file is not an error.
func loadEnvFile() error {
	err := godotenv.Load()
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// setDefaults sets default configuration values. Every key needs a default
// so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("matching.good_match_threshold", 7.0)
	v.SetDefault("matching.exact_match_score", 14.041802)
	v.SetDefault("matching.input_fields", []string{
		string(domain.FieldGTINCode),
		string(domain.FieldBrandName),
		string(domain.FieldProductName),
		string(domain.FieldDescriptionText),
	})
	v.SetDefault("matching.batch_workers", 4)

	v.SetDefault("index.type", "memory")
	v.SetDefault("index.fixture_path", "./testdata/catalog.yaml")
	v.SetDefault("index.memory.k1", 1.2)
	v.SetDefault("index.memory.b", 0.75)
	v.SetDefault("index.memory.boost", 2.0)
	v.SetDefault("index.memory.minimum_match", 0.25)
	v.SetDefault("index.sqlite_path", "./productmatch.db")
	v.SetDefault("index.postgres_dsn", "")
	v.SetDefault("index.base_url", "")
	v.SetDefault("index.api_key", "")
	v.SetDefault("index.rate_limit", 20)
	v.SetDefault("index.search_limit", 10)
	v.SetDefault("index.timeout", "10s")

	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "1h")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.input_topic", "productmatch.requests")
	v.SetDefault("kafka.output_topic", "productmatch.results")
	v.SetDefault("kafka.group_id", "productmatch")

	v.SetDefault("tracing.exporter", "none")
	v.SetDefault("tracing.protocol", "grpc")
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.service_name", "productmatch")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("tracing.timeout", "10s")

	v.SetDefault("log.level", "info")
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// validate checks field constraints, then the settings each backend needs
func validate(config *Config) error {
	if err := structValidator.Struct(config); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed %q check (value: %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}

	if _, err := domain.ParseSemanticFields(config.Matching.InputFields); err != nil {
		return fmt.Errorf("matching.input_fields: %w", err)
	}

	switch config.Index.Type {
	case "memory":
		if config.Index.FixturePath == "" {
			return fmt.Errorf("index.fixture_path is required when index type is 'memory'")
		}
	case "sqlite":
		if config.Index.SQLitePath == "" {
			return fmt.Errorf("index.sqlite_path is required when index type is 'sqlite'")
		}
	case "postgres":
		if config.Index.PostgresDSN == "" {
			return fmt.Errorf("index.postgres_dsn is required when index type is 'postgres' (set PRODUCTMATCH_INDEX_POSTGRES_DSN)")
		}
	case "http":
		if config.Index.BaseURL == "" {
			return fmt.Errorf("index.base_url is required when index type is 'http'")
		}
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if config.Tracing.Exporter == "otlp" && config.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing.endpoint is required when tracing exporter is 'otlp'")
	}

	return nil
}

// ValidateStream checks the settings the stream worker needs. The HTTP
// server does not require them.
func (k KafkaConfig) ValidateStream() error {
	if len(k.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers must not be empty")
	}
	if k.InputTopic == "" || k.OutputTopic == "" {
		return fmt.Errorf("kafka.input_topic and kafka.output_topic are required")
	}
	if k.InputTopic == k.OutputTopic {
		return fmt.Errorf("kafka.input_topic and kafka.output_topic must differ")
	}
	if k.GroupID == "" {
		return fmt.Errorf("kafka.group_id is required")
	}
	return nil
}
