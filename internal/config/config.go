package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the caption worker
type Config struct {
	Ops        OpsConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Storage    StorageConfig
	Queue      QueueConfig
	Transcoder TranscoderConfig
	Content    ContentConfig
	Worker     WorkerConfig
	Logging    LoggingConfig
	Tracing    TracingConfig
}

// OpsConfig holds the health/metrics HTTP server configuration
type OpsConfig struct {
	Port            int
	Host            string
	ShutdownTimeout time.Duration
}

// Addr returns the listen address of the ops server
func (c OpsConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Driver string // minio, gcs
	MinIO  MinIOConfig
	GCS    GCSConfig
}

// MinIOConfig holds S3-compatible storage settings
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
	URLExpiry       time.Duration
}

// GCSConfig holds Google Cloud Storage settings
type GCSConfig struct {
	BucketName      string
	CredentialsFile string
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Vhost         string
	Name          string
	MaxDeliveries int
	RetryDelay    time.Duration
}

// URL returns the AMQP connection URL
func (c QueueConfig) URL() string {
	vhost := strings.TrimPrefix(c.Vhost, "/")
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, vhost)
}

// TranscoderConfig holds ffmpeg configuration
type TranscoderConfig struct {
	FFmpegPath       string
	FFprobePath      string
	TempDir          string
	BurnTimeout      time.Duration
	TransformTimeout time.Duration
	ProbeTimeout     time.Duration
	Preset           string
	CRF              int
}

// ContentConfig holds the content generation model settings
type ContentConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// WorkerConfig holds job runtime settings
type WorkerConfig struct {
	Concurrency int
	ProgressTTL time.Duration
	JobTimeout  time.Duration
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// TracingConfig holds Jaeger settings
type TracingConfig struct {
	Enabled        bool
	ServiceName    string
	JaegerEndpoint string
	SamplingRate   float64
}

// Load reads configuration from file and environment variables.
// A .env file in the working directory is applied first when present.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
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

// Validate rejects settings the worker cannot run with
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "minio", "gcs":
	default:
		return fmt.Errorf("invalid storage driver %q", c.Storage.Driver)
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("worker concurrency must be at least 1, got %d", c.Worker.Concurrency)
	}
	if c.Queue.MaxDeliveries < 1 {
		return fmt.Errorf("queue maxDeliveries must be at least 1, got %d", c.Queue.MaxDeliveries)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Ops server defaults
	v.SetDefault("ops.port", 9091)
	v.SetDefault("ops.host", "0.0.0.0")
	v.SetDefault("ops.shutdownTimeout", "10s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "captions")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxConns", 25)
	v.SetDefault("database.minConns", 5)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Storage defaults
	v.SetDefault("storage.driver", "minio")
	v.SetDefault("storage.minio.endpoint", "localhost:9000")
	v.SetDefault("storage.minio.accessKeyID", "minioadmin")
	v.SetDefault("storage.minio.secretAccessKey", "minioadmin")
	v.SetDefault("storage.minio.bucketName", "media")
	v.SetDefault("storage.minio.region", "us-east-1")
	v.SetDefault("storage.minio.useSSL", false)
	v.SetDefault("storage.minio.urlExpiry", "168h")
	v.SetDefault("storage.gcs.bucketName", "")
	v.SetDefault("storage.gcs.credentialsFile", "")

	// Queue defaults
	v.SetDefault("queue.host", "localhost")
	v.SetDefault("queue.port", 5672)
	v.SetDefault("queue.user", "guest")
	v.SetDefault("queue.password", "guest")
	v.SetDefault("queue.vhost", "/")
	v.SetDefault("queue.name", "caption_jobs")
	v.SetDefault("queue.maxDeliveries", 3)
	v.SetDefault("queue.retryDelay", "30s")

	// Transcoder defaults
	v.SetDefault("transcoder.ffmpegPath", "ffmpeg")
	v.SetDefault("transcoder.ffprobePath", "ffprobe")
	v.SetDefault("transcoder.tempDir", "/tmp/captionpipe")
	v.SetDefault("transcoder.burnTimeout", "300s")
	v.SetDefault("transcoder.transformTimeout", "600s")
	v.SetDefault("transcoder.probeTimeout", "30s")
	v.SetDefault("transcoder.preset", "veryfast")
	v.SetDefault("transcoder.crf", 23)

	// Content generation defaults
	v.SetDefault("content.apiKey", "")
	v.SetDefault("content.model", "llama-3.3-70b-versatile")
	v.SetDefault("content.timeout", "60s")

	// Worker defaults
	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.progressTTL", "24h")
	v.SetDefault("worker.jobTimeout", "30m")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.serviceName", "caption-worker")
	v.SetDefault("tracing.jaegerEndpoint", "localhost:6831")
	v.SetDefault("tracing.samplingRate", 1.0)
}
