package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server        ServerConfig        `mapstructure:"server" validate:"required"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Queue         QueueConfig         `mapstructure:"queue" validate:"required"`
	Storage       StorageConfig       `mapstructure:"storage" validate:"required"`
	ObjectStore   ObjectStoreConfig   `mapstructure:"object_store" validate:"required"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Vision        VisionConfig        `mapstructure:"vision" validate:"required"`
	Thumbnail     ThumbnailConfig     `mapstructure:"thumbnail" validate:"required"`
	Worker        WorkerConfig        `mapstructure:"worker"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port             int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel         string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	MaxUploadBytes   int64         `mapstructure:"max_upload_bytes" validate:"gt=0"`
	UploadRateLimit  int           `mapstructure:"upload_rate_limit" validate:"gte=0"`
	UploadRateWindow time.Duration `mapstructure:"upload_rate_window"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
// URL is required whenever a postgres-backed queue or store is selected.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" validate:"omitempty,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// QueueConfig configures the lease queue and its dead-letter pairing.
type QueueConfig struct {
	Backend           string        `mapstructure:"backend" validate:"required,oneof=memory postgres sqs"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout" validate:"gt=0"`
	WaitTime          time.Duration `mapstructure:"wait_time" validate:"gte=0"`
	MaxReceiveCount   int           `mapstructure:"max_receive_count" validate:"gte=0"`
	MaxMessages       int           `mapstructure:"max_messages" validate:"gt=0,lte=10"`
	PollInterval      time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	SQS               SQSConfig     `mapstructure:"sqs"`
}

// SQSConfig names the AWS queues used when Backend is "sqs".
type SQSConfig struct {
	QueueURL           string `mapstructure:"queue_url" validate:"omitempty,url"`
	DeadLetterQueueURL string `mapstructure:"dead_letter_queue_url" validate:"omitempty,url"`
}

// StorageConfig selects where label records and thumbnail metadata live.
type StorageConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=memory postgres"`
}

// ObjectStoreConfig selects the blob store holding uploads and thumbnails.
type ObjectStoreConfig struct {
	Backend         string `mapstructure:"backend" validate:"required,oneof=memory s3"`
	ImageBucket     string `mapstructure:"image_bucket" validate:"required"`
	ThumbnailBucket string `mapstructure:"thumbnail_bucket" validate:"required"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// NotificationsConfig controls which uploaded objects enter the pipeline.
// Emit enables in-process notification of uploads; leave it off when the
// object store delivers creation events to the queue itself.
type NotificationsConfig struct {
	Emit     bool     `mapstructure:"emit"`
	Suffixes []string `mapstructure:"suffixes" validate:"required,min=1,dive,required"`
}

// VisionConfig selects and tunes the label-detection engine.
type VisionConfig struct {
	Provider      string        `mapstructure:"provider" validate:"required,oneof=gemini rekognition"`
	MaxLabels     int           `mapstructure:"max_labels" validate:"gt=0"`
	MinConfidence float64       `mapstructure:"min_confidence" validate:"gte=0,lte=100"`
	Gemini        GeminiConfig  `mapstructure:"gemini"`
	Breaker       BreakerConfig `mapstructure:"breaker"`
}

// GeminiConfig contains Gemini API settings.
type GeminiConfig struct {
	APIKey    string `mapstructure:"api_key"`
	ModelName string `mapstructure:"model_name"`
}

// BreakerConfig tunes the circuit breaker wrapped around the vision engine.
type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures" validate:"gt=0"`
	OpenTimeout time.Duration `mapstructure:"open_timeout" validate:"gt=0"`
}

// ThumbnailConfig lists the thumbnail variants produced for every image.
// MaxPixels bounds the declared size of a source image; larger sources are
// rejected before decoding.
type ThumbnailConfig struct {
	Variants    map[string]int `mapstructure:"variants" validate:"required,min=1,dive,keys,required,endkeys,gt=0"`
	JPEGQuality int            `mapstructure:"jpeg_quality" validate:"gte=1,lte=100"`
	MaxPixels   int64          `mapstructure:"max_pixels" validate:"gt=0"`
}

// WorkerConfig configures the extraction workers.
type WorkerConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Count             int           `mapstructure:"count" validate:"gte=0"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" validate:"gte=0"`
	ProcessTimeout    time.Duration `mapstructure:"process_timeout" validate:"gte=0"`
}
