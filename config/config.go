package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the process-wide configuration. It is built once at startup and
// passed by value or reference into every component that needs it.
type Config struct {
	Env         string
	ServerPort  int
	CORSOrigins []string
	Log         LogConfig
	Database    DatabaseConfig
	Auth        AuthConfig
	Storage     StorageConfig
	MQ          MQConfig
	Mail        MailConfig
	RateLimit   RateLimitConfig
}

type LogConfig struct {
	Level  string
	Format string
}

type DatabaseConfig struct {
	Driver      string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	UseSSL      bool
	Path        string
	AutoMigrate bool
}

// AuthConfig holds the signing and hashing parameters. None of these change
// after startup; rotating JWTSecret invalidates every outstanding token.
type AuthConfig struct {
	JWTSecret  string
	Algorithm  string
	TokenTTL   time.Duration
	BcryptCost int
}

type StorageConfig struct {
	Backend        string
	MaxUploadBytes int64
	Local          LocalConfig
	Minio          MinioConfig
	GCS            GCSConfig
}

type LocalConfig struct {
	Dir string
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
	Prefix          string
	CacheControl    string
}

type MQConfig struct {
	Backend  string
	Channel  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
	DeadLetter      bool
}

type PubSubConfig struct {
	ProjectID           string
	CredentialsFile     string
	SubscriptionSuffix  string
	DeadLetterTopic     string
	MaxDeliveryAttempts int
}

type MailConfig struct {
	SMTPHost   string
	SMTPPort   int
	Username   string
	Password   string
	From       string
	AdminEmail string
}

type RateLimitConfig struct {
	LoginPerMinute  int
	PublicPerMinute int
}

var defaultCORSOrigins = []string{
	"http://localhost:5173",
	"http://localhost:3000",
	"http://localhost:5174",
	"http://localhost:5175",
}

// LoadConfig reads configuration from the environment and, when configFile is
// non-empty, from that file. Environment variables win over file values.
func LoadConfig(configFile string) (Config, error) {
	if os.Getenv("ENV") == "dev" {
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		Env:         v.GetString("env"),
		ServerPort:  v.GetInt("server.port"),
		CORSOrigins: splitList(v.GetStringSlice("cors.origins")),
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Database: DatabaseConfig{
			Driver:      strings.ToLower(v.GetString("db.driver")),
			Host:        v.GetString("db.host"),
			Port:        v.GetInt("db.port"),
			User:        v.GetString("db.user"),
			Password:    v.GetString("db.password"),
			DBName:      v.GetString("db.name"),
			UseSSL:      v.GetBool("db.ssl"),
			Path:        v.GetString("db.path"),
			AutoMigrate: v.GetBool("db.auto_migrate"),
		},
		Auth: AuthConfig{
			JWTSecret:  strings.TrimSpace(v.GetString("jwt.secret")),
			Algorithm:  strings.ToUpper(v.GetString("jwt.algorithm")),
			TokenTTL:   v.GetDuration("jwt.ttl"),
			BcryptCost: v.GetInt("bcrypt.cost"),
		},
		Storage: StorageConfig{
			Backend:        strings.ToLower(v.GetString("storage.backend")),
			MaxUploadBytes: v.GetInt64("storage.max_upload_bytes"),
			Local:          LocalConfig{Dir: v.GetString("storage.local.dir")},
			Minio: MinioConfig{
				Endpoint:  v.GetString("minio.endpoint"),
				AccessKey: v.GetString("minio.access_key"),
				SecretKey: v.GetString("minio.secret_key"),
				Bucket:    v.GetString("minio.bucket"),
				UseSSL:    v.GetBool("minio.ssl"),
			},
			GCS: GCSConfig{
				Bucket:          v.GetString("gcs.bucket"),
				ProjectID:       v.GetString("gcs.project_id"),
				CredentialsFile: v.GetString("gcs.credentials_file"),
				Prefix:          v.GetString("gcs.prefix"),
				CacheControl:    v.GetString("gcs.cache_control"),
			},
		},
		MQ: MQConfig{
			Backend: strings.ToLower(v.GetString("mq.backend")),
			Channel: v.GetString("mq.channel"),
			RabbitMQ: RabbitMQConfig{
				URL:             v.GetString("rabbitmq.url"),
				QueueDurable:    v.GetBool("rabbitmq.durable"),
				QueueAutoDelete: v.GetBool("rabbitmq.auto_delete"),
				PrefetchCount:   v.GetInt("rabbitmq.prefetch"),
				DeadLetter:      v.GetBool("rabbitmq.dead_letter"),
			},
			PubSub: PubSubConfig{
				ProjectID:           v.GetString("pubsub.project_id"),
				CredentialsFile:     v.GetString("pubsub.credentials_file"),
				SubscriptionSuffix:  v.GetString("pubsub.subscription_suffix"),
				DeadLetterTopic:     v.GetString("pubsub.dead_letter_topic"),
				MaxDeliveryAttempts: v.GetInt("pubsub.max_delivery_attempts"),
			},
		},
		Mail: MailConfig{
			SMTPHost:   v.GetString("smtp.host"),
			SMTPPort:   v.GetInt("smtp.port"),
			Username:   v.GetString("smtp.username"),
			Password:   v.GetString("smtp.password"),
			From:       v.GetString("smtp.from"),
			AdminEmail: v.GetString("admin.email"),
		},
		RateLimit: RateLimitConfig{
			LoginPerMinute:  v.GetInt("ratelimit.login_per_minute"),
			PublicPerMinute: v.GetInt("ratelimit.public_per_minute"),
		},
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("cors.origins", defaultCORSOrigins)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "site")
	v.SetDefault("db.password", "password")
	v.SetDefault("db.name", "site_db")
	v.SetDefault("db.ssl", false)
	v.SetDefault("db.path", "personal_website.db")
	v.SetDefault("db.auto_migrate", true)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.algorithm", "HS256")
	v.SetDefault("jwt.ttl", 30*time.Minute)
	v.SetDefault("bcrypt.cost", 10)

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.max_upload_bytes", int64(10<<20))
	v.SetDefault("storage.local.dir", "uploads")
	v.SetDefault("minio.bucket", "uploads")
	v.SetDefault("gcs.bucket", "")
	v.SetDefault("gcs.cache_control", "public, max-age=86400")

	v.SetDefault("mq.backend", "")
	v.SetDefault("mq.channel", "site-notifications")
	v.SetDefault("rabbitmq.durable", true)
	v.SetDefault("rabbitmq.prefetch", 10)
	v.SetDefault("rabbitmq.dead_letter", true)
	v.SetDefault("pubsub.subscription_suffix", "-sub")
	v.SetDefault("pubsub.max_delivery_attempts", 5)

	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)

	v.SetDefault("ratelimit.login_per_minute", 10)
	v.SetDefault("ratelimit.public_per_minute", 30)
}

// Validate reports configuration that would leave the server unable to
// authenticate anybody or reach its database.
func (c Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.Auth.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("unsupported JWT_ALGORITHM %q", c.Auth.Algorithm))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver))
	}
	return errors.Join(errs...)
}

// splitList accepts both a real list (config file) and a single
// comma-separated env value.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
