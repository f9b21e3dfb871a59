package common

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Input    InputConfig    `toml:"input"`
	Output   OutputConfig   `toml:"output"`
	PDF      PDFConfig      `toml:"pdf"`
	Database DatabaseConfig `toml:"database"`
	S3       S3Config       `toml:"s3"`
	Kafka    KafkaConfig    `toml:"kafka"`
	Server   ServerConfig   `toml:"server"`
	Batch    BatchConfig    `toml:"batch"`
	Log      LogConfig      `toml:"log"`
}

// InputConfig controls where confirmations are discovered
type InputConfig struct {
	Dir        string `toml:"dir"`
	SkipHidden bool   `toml:"skip_hidden"`
	Watch      bool   `toml:"watch"`
}

// OutputConfig controls local JSON and XLSX output
type OutputConfig struct {
	Dir      string `toml:"dir"`
	XLSXPath string `toml:"xlsx_path"`
}

// PDFConfig holds pdftotext settings
type PDFConfig struct {
	Binary   string        `toml:"binary"`
	MaxPages int           `toml:"max_pages"`
	Timeout  time.Duration `toml:"timeout"`
}

// DatabaseConfig holds database-related configuration.
// An empty DSN disables persistence.
type DatabaseConfig struct {
	DSN              string        `toml:"dsn"`
	MaxConns         int32         `toml:"max_conns"`
	MinConns         int32         `toml:"min_conns"`
	MaxConnLifetime  time.Duration `toml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `toml:"max_conn_idle_time"`
	DialTimeout      time.Duration `toml:"dial_timeout"`
	StatementTimeout time.Duration `toml:"statement_timeout"`
}

// S3Config holds object storage settings; publishing to S3 is off without a bucket
type S3Config struct {
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	Region         string `toml:"region"`
	Endpoint       string `toml:"endpoint"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// KafkaConfig holds broker settings; publishing to Kafka is off without brokers
type KafkaConfig struct {
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string `toml:"grpc_addr"`
}

// BatchConfig controls document concurrency for batch runs and the watcher queue
type BatchConfig struct {
	Concurrency int           `toml:"concurrency"`
	QueueSize   int           `toml:"queue_size"`
	JobTimeout  time.Duration `toml:"job_timeout"`
	Force       bool          `toml:"force"`
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Input:  InputConfig{Dir: "./data", SkipHidden: true},
		Output: OutputConfig{Dir: "./output"},
		PDF:    PDFConfig{Binary: "pdftotext", MaxPages: 0, Timeout: 30 * time.Second},
		Database: DatabaseConfig{
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		S3:     S3Config{Prefix: "trades", Region: "us-east-1"},
		Kafka:  KafkaConfig{Topic: "trades"},
		Server: ServerConfig{GRPCAddr: ":8080"},
		Batch:  BatchConfig{Concurrency: 4, QueueSize: 100, JobTimeout: 2 * time.Minute},
		Log:    LogConfig{Level: "info", Format: "json"},
	}
}

// LoadConfig layers defaults, an optional TOML file, an optional .env file and
// environment variables, in that order. An empty path skips the TOML file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("read %s", path), err)
		}
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, NewAppError("CONFIG_ERROR", "read .env", err)
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(c *Config) {
	c.Input.Dir = getEnv("TRADES_INPUT_DIR", c.Input.Dir)
	c.Input.SkipHidden = getEnvAsBool("TRADES_SKIP_HIDDEN", c.Input.SkipHidden)
	c.Input.Watch = getEnvAsBool("TRADES_WATCH", c.Input.Watch)

	c.Output.Dir = getEnv("TRADES_OUTPUT_DIR", c.Output.Dir)
	c.Output.XLSXPath = getEnv("TRADES_XLSX_PATH", c.Output.XLSXPath)

	c.PDF.Binary = getEnv("PDFTOTEXT_BIN", c.PDF.Binary)
	c.PDF.MaxPages = getEnvAsInt("PDF_MAX_PAGES", c.PDF.MaxPages)
	c.PDF.Timeout = getEnvAsDuration("PDF_TIMEOUT", c.PDF.Timeout)

	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.S3.Bucket = getEnv("S3_BUCKET", c.S3.Bucket)
	c.S3.Prefix = getEnv("S3_PREFIX", c.S3.Prefix)
	c.S3.Region = getEnv("S3_REGION", c.S3.Region)
	c.S3.Endpoint = getEnv("S3_ENDPOINT", c.S3.Endpoint)
	c.S3.AccessKey = getEnv("S3_ACCESS_KEY", c.S3.AccessKey)
	c.S3.SecretKey = getEnv("S3_SECRET_KEY", c.S3.SecretKey)
	c.S3.ForcePathStyle = getEnvAsBool("S3_FORCE_PATH_STYLE", c.S3.ForcePathStyle)

	c.Kafka.Brokers = getEnvAsList("KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)

	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)

	c.Batch.Concurrency = getEnvAsInt("BATCH_CONCURRENCY", c.Batch.Concurrency)
	c.Batch.QueueSize = getEnvAsInt("BATCH_QUEUE_SIZE", c.Batch.QueueSize)
	c.Batch.JobTimeout = getEnvAsDuration("BATCH_JOB_TIMEOUT", c.Batch.JobTimeout)
	c.Batch.Force = getEnvAsBool("BATCH_FORCE", c.Batch.Force)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Input.Dir == "" {
		return NewAppError("CONFIG_ERROR", "input dir is required", ErrInvalidInput)
	}
	if c.Batch.Concurrency < 1 {
		return NewAppError("CONFIG_ERROR", "batch concurrency must be at least 1", ErrInvalidInput)
	}
	if c.Batch.QueueSize < 1 {
		return NewAppError("CONFIG_ERROR", "batch queue size must be at least 1", ErrInvalidInput)
	}
	if c.PDF.MaxPages < 0 {
		return NewAppError("CONFIG_ERROR", "pdf max pages must not be negative", ErrInvalidInput)
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return NewAppError("CONFIG_ERROR", "db min conns exceeds max conns", ErrInvalidInput)
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return NewAppError("CONFIG_ERROR", "kafka topic is required when brokers are set", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return NewAppError("CONFIG_ERROR", "invalid log level", err)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown log format %q", c.Log.Format), ErrInvalidInput)
	}
	return nil
}
