package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Queue    QueueConfig
	Auth     AuthConfig
	Editor   EditorConfig
	Export   ExportConfig
	Metrics  MetricsConfig
}

// MetricsConfig holds the standalone metrics endpoint configuration
// used by processes without an API server of their own.
type MetricsConfig struct {
	Port int
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
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
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
}

// AuthConfig holds JWT authentication configuration
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// EditorConfig holds timeline editor tuning
type EditorConfig struct {
	HistoryCapacity  int
	SnapThresholdPx  float64
	MinClipDuration  float64
	PreviewFrameRate int
	PreviewWidth     int
	PreviewHeight    int
	FFmpegPath       string
	FFprobePath      string
}

// ExportConfig holds export renderer configuration
type ExportConfig struct {
	WorkerCount  int
	TempDir      string
	FrameRate    int
	GracePeriod  time.Duration
	CodecLabels  []string
	WebhookURL   string
	UploadPrefix string
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.readTimeout", "30s")
	viper.SetDefault("server.writeTimeout", "30s")
	viper.SetDefault("server.shutdownTimeout", "10s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "cutline")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.maxConns", 25)
	viper.SetDefault("database.minConns", 5)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Storage defaults
	viper.SetDefault("storage.endpoint", "localhost:9000")
	viper.SetDefault("storage.accessKeyID", "minioadmin")
	viper.SetDefault("storage.secretAccessKey", "minioadmin")
	viper.SetDefault("storage.bucketName", "media")
	viper.SetDefault("storage.region", "us-east-1")
	viper.SetDefault("storage.useSSL", false)

	// Queue defaults
	viper.SetDefault("queue.host", "localhost")
	viper.SetDefault("queue.port", 5672)
	viper.SetDefault("queue.user", "guest")
	viper.SetDefault("queue.password", "guest")
	viper.SetDefault("queue.vhost", "/")

	// Auth defaults
	viper.SetDefault("auth.jwtSecret", "")
	viper.SetDefault("auth.tokenTTL", "24h")

	// Editor defaults
	viper.SetDefault("editor.historyCapacity", 50)
	viper.SetDefault("editor.snapThresholdPx", 10.0)
	viper.SetDefault("editor.minClipDuration", 0.1)
	viper.SetDefault("editor.previewFrameRate", 30)
	viper.SetDefault("editor.previewWidth", 854)
	viper.SetDefault("editor.previewHeight", 480)
	viper.SetDefault("editor.ffmpegPath", "ffmpeg")
	viper.SetDefault("editor.ffprobePath", "ffprobe")

	viper.SetDefault("metrics.port", 9091)

	// Export defaults
	viper.SetDefault("export.workerCount", 2)
	viper.SetDefault("export.tempDir", "/tmp/cutline")
	viper.SetDefault("export.frameRate", 30)
	viper.SetDefault("export.gracePeriod", "250ms")
	viper.SetDefault("export.codecLabels", []string{"mp4/h264", "webm/vp9", "mkv/mpeg4"})
	viper.SetDefault("export.webhookURL", "")
	viper.SetDefault("export.uploadPrefix", "exports/")
}
