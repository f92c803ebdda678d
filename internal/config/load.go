package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "IMGLABEL"

// setDefaults registers every configuration key with viper. Keys that are not
// registered are invisible to AutomaticEnv during Unmarshal, so optional keys
// get an explicit zero default.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.max_upload_bytes", 10<<20)
	v.SetDefault("server.upload_rate_limit", 60)
	v.SetDefault("server.upload_rate_window", time.Minute)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("queue.backend", "memory")
	v.SetDefault("queue.visibility_timeout", 30*time.Second)
	v.SetDefault("queue.wait_time", 20*time.Second)
	v.SetDefault("queue.max_receive_count", 2)
	v.SetDefault("queue.max_messages", 10)
	v.SetDefault("queue.poll_interval", 500*time.Millisecond)
	v.SetDefault("queue.sqs.queue_url", "")
	v.SetDefault("queue.sqs.dead_letter_queue_url", "")

	v.SetDefault("storage.backend", "memory")

	v.SetDefault("object_store.backend", "memory")
	v.SetDefault("object_store.image_bucket", "imglabel-images")
	v.SetDefault("object_store.thumbnail_bucket", "imglabel-thumbnails")
	v.SetDefault("object_store.region", "")
	v.SetDefault("object_store.endpoint", "")
	v.SetDefault("object_store.use_path_style", false)

	v.SetDefault("notifications.emit", true)
	v.SetDefault("notifications.suffixes", []string{".jpeg", ".png"})

	v.SetDefault("vision.provider", "gemini")
	v.SetDefault("vision.max_labels", 10)
	v.SetDefault("vision.min_confidence", 70.0)
	v.SetDefault("vision.gemini.api_key", "")
	v.SetDefault("vision.gemini.model_name", "gemini-2.0-flash")
	v.SetDefault("vision.breaker.max_failures", 5)
	v.SetDefault("vision.breaker.open_timeout", 30*time.Second)

	v.SetDefault("thumbnail.variants", map[string]int{"small": 128, "medium": 512})
	v.SetDefault("thumbnail.jpeg_quality", 85)
	v.SetDefault("thumbnail.max_pixels", 50_000_000)

	v.SetDefault("worker.enabled", true)
	v.SetDefault("worker.count", 2)
	v.SetDefault("worker.heartbeat_interval", 0)
	v.SetDefault("worker.process_timeout", 30*time.Second)
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// A .env file in the working directory is loaded first when present.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path := os.Getenv(EnvPrefix + "_CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("imglabel")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/imglabel")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate runs field and cross-field validation over cfg.
func Validate(cfg *Config) error {
	validate := validator.New()
	validate.RegisterStructValidation(backendRequirements, Config{})
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// backendRequirements rejects backend selections whose connection settings are
// missing.
func backendRequirements(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)

	needsDB := cfg.Queue.Backend == "postgres" || cfg.Storage.Backend == "postgres"
	if needsDB && cfg.Database.URL == "" {
		sl.ReportError(cfg.Database.URL, "Database.URL", "URL", "required_for_postgres", "")
	}
	if cfg.Queue.Backend == "sqs" {
		if cfg.Queue.SQS.QueueURL == "" {
			sl.ReportError(cfg.Queue.SQS.QueueURL, "Queue.SQS.QueueURL", "QueueURL", "required_for_sqs", "")
		}
		if cfg.Queue.SQS.DeadLetterQueueURL == "" {
			sl.ReportError(cfg.Queue.SQS.DeadLetterQueueURL, "Queue.SQS.DeadLetterQueueURL",
				"DeadLetterQueueURL", "required_for_sqs", "")
		}
	}
	if cfg.Vision.Provider == "gemini" && cfg.Vision.Gemini.APIKey == "" {
		sl.ReportError(cfg.Vision.Gemini.APIKey, "Vision.Gemini.APIKey", "APIKey", "required_for_gemini", "")
	}
	if cfg.Queue.Backend == "sqs" && cfg.Notifications.Emit && cfg.ObjectStore.Backend == "s3" {
		// S3 delivers creation events to SQS on its own; emitting as well would
		// double every notification.
		sl.ReportError(cfg.Notifications.Emit, "Notifications.Emit", "Emit", "conflicts_with_s3_events", "")
	}
}
