// Package config loads and validates the index builder configuration from
// YAML files with environment-variable overrides. It provides typed structs
// for every stage (pipeline, shuffle, aggregator, sink) and for the external
// stores the sinks write to (Postgres, Redis, Kafka).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Shuffle    ShuffleConfig    `yaml:"shuffle"`
	Sink       SinkConfig       `yaml:"sink"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Retry      RetryConfig      `yaml:"retry"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// Malformed record policies.
const (
	PolicyFail = "fail"
	PolicySkip = "skip"
)

// Order check modes.
const (
	OrderCheckOff  = "off"
	OrderCheckWarn = "warn"
	OrderCheckFail = "fail"
)

// Shuffle modes and spill compression codecs.
const (
	ShuffleMemory   = "memory"
	ShuffleExternal = "external"

	CompressionNone = "none"
	CompressionZstd = "zstd"
	CompressionLZ4  = "lz4"
)

// Sink types.
const (
	SinkText     = "text"
	SinkSegment  = "segment"
	SinkPostgres = "postgres"
	SinkRedis    = "redis"
	SinkKafka    = "kafka"
)

// PipelineConfig controls the map stage.
type PipelineConfig struct {
	Workers          int    `yaml:"workers"`
	MalformedRecords string `yaml:"malformedRecords"`
	SkipHeader       bool   `yaml:"skipHeader"`
}

// AggregatorConfig controls the reduce stage.
type AggregatorConfig struct {
	OrderCheck string `yaml:"orderCheck"`
}

// ShuffleConfig selects the sort stage between map and reduce. RunSize is
// the number of occurrences buffered before a sorted run is spilled.
type ShuffleConfig struct {
	Mode        string `yaml:"mode"`
	RunSize     int    `yaml:"runSize"`
	TempDir     string `yaml:"tempDir"`
	Compression string `yaml:"compression"`
}

// SinkConfig selects where finished index entries are written.
type SinkConfig struct {
	Type      string `yaml:"type"`
	Path      string `yaml:"path"`
	BatchSize int    `yaml:"batchSize"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	Table           string        `yaml:"table"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string      `yaml:"brokers"`
	ConsumerGroup string        `yaml:"consumerGroup"`
	Topics        KafkaTopics   `yaml:"topics"`
	IdleTimeout   time.Duration `yaml:"idleTimeout"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	ForumRecords string `yaml:"forumRecords"`
	IndexEntries string `yaml:"indexEntries"`
}

// RedisConfig holds Redis connection parameters and the key layout used by
// the redis sink.
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	PoolSize  int           `yaml:"poolSize"`
	KeyPrefix string        `yaml:"keyPrefix"`
	EntryTTL  time.Duration `yaml:"entryTTL"`
}

// RetryConfig controls backoff for network sink batches.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"maxAttempts"`
	InitialDelay time.Duration `yaml:"initialDelay"`
	MaxDelay     time.Duration `yaml:"maxDelay"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config suitable for running the pipeline locally over
// files, writing text entries to stdout.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Workers:          4,
			MalformedRecords: PolicyFail,
		},
		Aggregator: AggregatorConfig{
			OrderCheck: OrderCheckOff,
		},
		Shuffle: ShuffleConfig{
			Mode:        ShuffleMemory,
			RunSize:     1 << 20,
			Compression: CompressionZstd,
		},
		Sink: SinkConfig{
			Type:      SinkText,
			Path:      "-",
			BatchSize: 500,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "forumindex",
			User:            "forumindex",
			Password:        "localdev",
			SSLMode:         "disable",
			Table:           "index_entries",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "forum-index-group",
			Topics: KafkaTopics{
				ForumRecords: "forum-records",
				IndexEntries: "index-entries",
			},
			IdleTimeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "index:",
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// Validate checks enumerated settings and numeric bounds.
func (c *Config) Validate() error {
	if c.Pipeline.Workers <= 0 {
		return apperrors.Invalidf("pipeline.workers must be positive, got %d", c.Pipeline.Workers)
	}
	if err := oneOf("pipeline.malformedRecords", c.Pipeline.MalformedRecords, PolicyFail, PolicySkip); err != nil {
		return err
	}
	if err := oneOf("aggregator.orderCheck", c.Aggregator.OrderCheck, OrderCheckOff, OrderCheckWarn, OrderCheckFail); err != nil {
		return err
	}
	if err := oneOf("shuffle.mode", c.Shuffle.Mode, ShuffleMemory, ShuffleExternal); err != nil {
		return err
	}
	if err := oneOf("shuffle.compression", c.Shuffle.Compression, CompressionNone, CompressionZstd, CompressionLZ4); err != nil {
		return err
	}
	if c.Shuffle.Mode == ShuffleExternal && c.Shuffle.RunSize <= 0 {
		return apperrors.Invalidf("shuffle.runSize must be positive, got %d", c.Shuffle.RunSize)
	}
	if err := oneOf("sink.type", c.Sink.Type, SinkText, SinkSegment, SinkPostgres, SinkRedis, SinkKafka); err != nil {
		return err
	}
	if c.Sink.Type == SinkSegment && (c.Sink.Path == "" || c.Sink.Path == "-") {
		return apperrors.Invalidf("sink.path must name a directory for the segment sink")
	}
	if c.Sink.BatchSize <= 0 {
		return apperrors.Invalidf("sink.batchSize must be positive, got %d", c.Sink.BatchSize)
	}
	return nil
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return apperrors.Invalidf("%s must be one of %s, got %q", field, strings.Join(allowed, "|"), value)
}

// applyEnvOverrides reads FI_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FI_PIPELINE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.Workers = n
		}
	}
	if v := os.Getenv("FI_PIPELINE_MALFORMED_RECORDS"); v != "" {
		cfg.Pipeline.MalformedRecords = v
	}
	if v := os.Getenv("FI_AGGREGATOR_ORDER_CHECK"); v != "" {
		cfg.Aggregator.OrderCheck = v
	}
	if v := os.Getenv("FI_SHUFFLE_MODE"); v != "" {
		cfg.Shuffle.Mode = v
	}
	if v := os.Getenv("FI_SHUFFLE_TEMP_DIR"); v != "" {
		cfg.Shuffle.TempDir = v
	}
	if v := os.Getenv("FI_SINK_TYPE"); v != "" {
		cfg.Sink.Type = v
	}
	if v := os.Getenv("FI_SINK_PATH"); v != "" {
		cfg.Sink.Path = v
	}
	if v := os.Getenv("FI_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("FI_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("FI_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("FI_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("FI_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("FI_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("FI_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("FI_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("FI_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FI_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("FI_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
			cfg.Metrics.Enabled = true
		}
	}
}
