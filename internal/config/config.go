package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Object store backends understood by the API.
const (
	BackendMinIO = "minio"
	BackendS3    = "s3"
)

// Config aggregates runtime configuration for the image host.
type Config struct {
	Server      ServerConfig      `envPrefix:"IMAGEHOST_"`
	Postgres    PostgresConfig    `envPrefix:"POSTGRES_"`
	ObjectStore ObjectStoreConfig `envPrefix:"OBJECT_STORE_"`
	AWS         AWSConfig         `envPrefix:"AWS_"`
	Notify      NotifyConfig      `envPrefix:"NOTIFY_"`
	Admin       AdminConfig       `envPrefix:"IMAGEHOST_ADMIN_"`
	Metrics     MetricsConfig     `envPrefix:"IMAGEHOST_METRICS_"`
	Log         LogConfig         `envPrefix:"LOG_"`
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host            string        `env:"HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxUploadBytes  int64         `env:"MAX_UPLOAD_BYTES" envDefault:"33554432"`
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains PostgreSQL connection details.
type PostgresConfig struct {
	Host           string        `env:"HOST" envDefault:"localhost"`
	Port           int           `env:"PORT" envDefault:"5432"`
	User           string        `env:"USER,notEmpty"`
	Password       string        `env:"PASSWORD,notEmpty"`
	Database       string        `env:"DB,notEmpty"`
	SSLMode        string        `env:"SSL_MODE" envDefault:"disable"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"5s"`
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     "/" + p.Database,
		RawQuery: "sslmode=" + url.QueryEscape(p.SSLMode),
	}
	return u.String()
}

// ObjectStoreConfig carries object store connection and bucket information.
type ObjectStoreConfig struct {
	Backend         string        `env:"BACKEND" envDefault:"minio"`
	Bucket          string        `env:"BUCKET,notEmpty"`
	Endpoint        string        `env:"ENDPOINT"`
	AccessKeyID     string        `env:"ACCESS_KEY_ID"`
	SecretAccessKey string        `env:"SECRET_ACCESS_KEY"`
	UseSSL          bool          `env:"USE_SSL" envDefault:"false"`
	UsePathStyle    bool          `env:"USE_PATH_STYLE" envDefault:"true"`
	PresignTTL      time.Duration `env:"PRESIGN_TTL" envDefault:"3600s"`
}

// AWSConfig holds settings shared by every AWS SDK client.
type AWSConfig struct {
	Region string `env:"REGION" envDefault:"eu-north-1"`
}

// NotifyConfig describes the upload event queue and the notification topic.
type NotifyConfig struct {
	QueueURL         string        `env:"SQS_QUEUE_URL"`
	TopicARN         string        `env:"SNS_TOPIC_ARN"`
	DrainEnabled     bool          `env:"DRAIN_ENABLED" envDefault:"false"`
	DrainInterval    time.Duration `env:"DRAIN_INTERVAL" envDefault:"5s"`
	DrainWait        time.Duration `env:"DRAIN_WAIT" envDefault:"20s"`
	DrainMaxMessages int32         `env:"DRAIN_MAX_MESSAGES" envDefault:"10"`
	PublishTimeout   time.Duration `env:"PUBLISH_TIMEOUT" envDefault:"10s"`
}

// Enabled reports whether both the queue and the topic are configured.
func (n NotifyConfig) Enabled() bool {
	return n.QueueURL != "" && n.TopicARN != ""
}

// AdminConfig groups settings for operator-only routes.
type AdminConfig struct {
	TokenSecret string        `env:"TOKEN_SECRET"`
	TokenTTL    time.Duration `env:"TOKEN_TTL" envDefault:"1h"`
}

// Enabled reports whether admin routes should be mounted.
func (a AdminConfig) Enabled() bool {
	return a.TokenSecret != ""
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string `env:"PATH" envDefault:"/metrics"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env config: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("IMAGEHOST_MAX_UPLOAD_BYTES must be positive")
	}
	if c.Notify.DrainEnabled && !c.Notify.Enabled() {
		return fmt.Errorf("NOTIFY_DRAIN_ENABLED requires NOTIFY_SQS_QUEUE_URL and NOTIFY_SNS_TOPIC_ARN")
	}
	if c.Notify.DrainEnabled && c.Notify.DrainInterval <= 0 {
		return fmt.Errorf("NOTIFY_DRAIN_INTERVAL must be positive")
	}
	// SQS long polling waits at most 20 seconds.
	if c.Notify.DrainEnabled && (c.Notify.DrainWait < 0 || c.Notify.DrainWait > 20*time.Second) {
		return fmt.Errorf("NOTIFY_DRAIN_WAIT must be between 0s and 20s")
	}
	if c.Notify.DrainMaxMessages < 1 || c.Notify.DrainMaxMessages > 10 {
		return fmt.Errorf("NOTIFY_DRAIN_MAX_MESSAGES must be between 1 and 10")
	}
	return nil
}

func (c Config) validateStorage() error {
	switch c.ObjectStore.Backend {
	case BackendMinIO:
		if c.ObjectStore.Endpoint == "" {
			return fmt.Errorf("OBJECT_STORE_ENDPOINT is required for the %s backend", BackendMinIO)
		}
	case BackendS3:
		if c.AWS.Region == "" {
			return fmt.Errorf("AWS_REGION is required for the %s backend", BackendS3)
		}
	default:
		return fmt.Errorf("unknown OBJECT_STORE_BACKEND %q", c.ObjectStore.Backend)
	}

	if c.ObjectStore.PresignTTL <= 0 {
		return fmt.Errorf("OBJECT_STORE_PRESIGN_TTL must be positive")
	}
	return nil
}

// LoadReconciler reads only the settings the reconciliation job needs.
// The job needs neither the notification settings nor the HTTP server.
func LoadReconciler() (Config, error) {
	var cfg struct {
		Postgres    PostgresConfig    `envPrefix:"POSTGRES_"`
		ObjectStore ObjectStoreConfig `envPrefix:"OBJECT_STORE_"`
		AWS         AWSConfig         `envPrefix:"AWS_"`
		Log         LogConfig         `envPrefix:"LOG_"`
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env config: %w", err)
	}

	out := Config{
		Postgres:    cfg.Postgres,
		ObjectStore: cfg.ObjectStore,
		AWS:         cfg.AWS,
		Log:         cfg.Log,
	}
	out.normalize()
	if err := out.validateStorage(); err != nil {
		return Config{}, err
	}
	return out, nil
}

func (c *Config) normalize() {
	c.ObjectStore.Backend = strings.ToLower(strings.TrimSpace(c.ObjectStore.Backend))
	c.ObjectStore.Bucket = strings.TrimSpace(c.ObjectStore.Bucket)
	c.ObjectStore.Endpoint = strings.TrimSpace(c.ObjectStore.Endpoint)
	c.Postgres.SSLMode = strings.ToLower(c.Postgres.SSLMode)
	c.Notify.QueueURL = strings.TrimSpace(c.Notify.QueueURL)
	c.Notify.TopicARN = strings.TrimSpace(c.Notify.TopicARN)
}
