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
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env  string `validate:"required"`
	Port int    `validate:"gt=0,lte=65535"`

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	Reminders RemindersConfig
	Mail      MailConfig
	SMS       SMSConfig
	Notify    NotifyConfig
	Broker    BrokerConfig
	Tracing   TracingConfig
}

type DatabaseConfig struct {
	Host         string `validate:"required"`
	Port         int    `validate:"gt=0"`
	User         string
	Password     string
	Name         string `validate:"required"`
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string `validate:"required"`
}

type LogConfig struct {
	Level  string
	Format string `validate:"omitempty,oneof=json console"`
}

// RemindersConfig tunes the reminder sweep. Offset, HalfWidth and Interval
// default to 30m, 2m and 60s.
type RemindersConfig struct {
	Disabled        bool
	Offset          time.Duration `validate:"gt=0"`
	HalfWidth       time.Duration `validate:"gt=0"`
	Interval        time.Duration `validate:"gt=0"`
	DispatchTimeout time.Duration `validate:"gt=0"`
	Concurrency     int           `validate:"gte=1"`
	DefaultTimezone string        `validate:"required"`
	DistributedLock bool
	LockTTL         time.Duration
}

// MailConfig holds Mailgun credentials. An empty domain or key switches to log-only delivery.
type MailConfig struct {
	Domain  string
	APIKey  string
	BaseURL string `validate:"omitempty,url"`
	From    string
}

// SMSConfig holds Semaphore credentials. An empty key switches to log-only delivery.
type SMSConfig struct {
	APIKey     string
	SenderName string
	BaseURL    string `validate:"omitempty,url"`
}

// NotifyConfig applies to every outbound notification transport.
type NotifyConfig struct {
	HTTPTimeout time.Duration `validate:"gt=0"`
}

// BrokerConfig enables reminder events on RabbitMQ when URL is set.
type BrokerConfig struct {
	URL      string
	Exchange string
}

// TracingConfig enables OTLP trace export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string
	ServiceName string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	interval := parseDuration(v.GetString("REMINDERS_INTERVAL"), time.Minute)
	cfg.Reminders = RemindersConfig{
		Disabled:        v.GetBool("REMINDERS_DISABLED"),
		Offset:          parseDuration(v.GetString("REMINDERS_OFFSET"), 30*time.Minute),
		HalfWidth:       parseDuration(v.GetString("REMINDERS_WINDOW_HALF_WIDTH"), 2*time.Minute),
		Interval:        interval,
		DispatchTimeout: parseDuration(v.GetString("REMINDERS_DISPATCH_TIMEOUT"), 10*time.Second),
		Concurrency:     v.GetInt("REMINDERS_CONCURRENCY"),
		DefaultTimezone: v.GetString("REMINDERS_DEFAULT_TIMEZONE"),
		DistributedLock: v.GetBool("REMINDERS_DISTRIBUTED_LOCK"),
		LockTTL:         parseDuration(v.GetString("REMINDERS_LOCK_TTL"), interval),
	}

	cfg.Mail = MailConfig{
		Domain:  v.GetString("MAILGUN_DOMAIN"),
		APIKey:  v.GetString("MAILGUN_API_KEY"),
		BaseURL: v.GetString("MAILGUN_BASE_URL"),
		From:    v.GetString("MAIL_FROM"),
	}

	cfg.SMS = SMSConfig{
		APIKey:     v.GetString("SEMAPHORE_API_KEY"),
		SenderName: v.GetString("SEMAPHORE_SENDER_NAME"),
		BaseURL:    v.GetString("SEMAPHORE_BASE_URL"),
	}

	cfg.Notify = NotifyConfig{
		HTTPTimeout: parseDuration(v.GetString("NOTIFY_HTTP_TIMEOUT"), 10*time.Second),
	}

	cfg.Broker = BrokerConfig{
		URL:      v.GetString("MQ_URL"),
		Exchange: v.GetString("MQ_EXCHANGE"),
	}

	cfg.Tracing = TracingConfig{
		Endpoint:    v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName: v.GetString("OTEL_SERVICE_NAME"),
	}

	return cfg
}

// Validate checks field constraints and the sweep cadence. A period longer
// than the full window width could let a booking slip between two ticks.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Reminders.Interval > 2*c.Reminders.HalfWidth {
		return fmt.Errorf("invalid configuration: REMINDERS_INTERVAL (%s) must not exceed twice REMINDERS_WINDOW_HALF_WIDTH (%s)",
			c.Reminders.Interval, c.Reminders.HalfWidth)
	}
	if c.Reminders.HalfWidth >= c.Reminders.Offset {
		return fmt.Errorf("invalid configuration: REMINDERS_WINDOW_HALF_WIDTH (%s) must be smaller than REMINDERS_OFFSET (%s)",
			c.Reminders.HalfWidth, c.Reminders.Offset)
	}
	return nil
}

// MailEnabled reports whether Mailgun credentials are present.
func (c MailConfig) MailEnabled() bool {
	return c.Domain != "" && c.APIKey != ""
}

// SMSEnabled reports whether Semaphore credentials are present.
func (c SMSConfig) SMSEnabled() bool {
	return c.APIKey != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "booking")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("REMINDERS_DISABLED", false)
	v.SetDefault("REMINDERS_OFFSET", "30m")
	v.SetDefault("REMINDERS_WINDOW_HALF_WIDTH", "2m")
	v.SetDefault("REMINDERS_INTERVAL", "60s")
	v.SetDefault("REMINDERS_DISPATCH_TIMEOUT", "10s")
	v.SetDefault("REMINDERS_CONCURRENCY", 8)
	v.SetDefault("REMINDERS_DEFAULT_TIMEZONE", "Asia/Manila")
	v.SetDefault("REMINDERS_DISTRIBUTED_LOCK", false)
	v.SetDefault("REMINDERS_LOCK_TTL", "")

	v.SetDefault("MAILGUN_DOMAIN", "")
	v.SetDefault("MAILGUN_API_KEY", "")
	v.SetDefault("MAILGUN_BASE_URL", "https://api.mailgun.net/v3")
	v.SetDefault("MAIL_FROM", "")

	v.SetDefault("SEMAPHORE_API_KEY", "")
	v.SetDefault("SEMAPHORE_SENDER_NAME", "")
	v.SetDefault("SEMAPHORE_BASE_URL", "https://api.semaphore.co/api/v4")

	v.SetDefault("NOTIFY_HTTP_TIMEOUT", "10s")

	v.SetDefault("MQ_URL", "")
	v.SetDefault("MQ_EXCHANGE", "booking.exchange")

	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_SERVICE_NAME", "booking-reminders")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
