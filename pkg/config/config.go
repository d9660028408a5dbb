package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	RateLimit  RateLimitConfig
	Analytics  AnalyticsConfig
	Alerts     AlertsConfig
	Delivery   DeliveryConfig
	Reports    ReportsConfig
	MinIO      MinIOConfig
	Cron       CronConfig
	Narrator   NarratorConfig
	Thresholds Thresholds
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
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
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// RateLimitConfig bounds requests per client IP.
type RateLimitConfig struct {
	LoginPerMinute int
	APIPerMinute   int
}

// AnalyticsConfig governs cache behaviour for trend and cohort endpoints.
type AnalyticsConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// AlertsConfig controls alert notifications.
type AlertsConfig struct {
	NotifyCritical bool
	SlackToken     string
	SlackChannel   string
}

// DeliveryConfig configures outbound intervention email.
type DeliveryConfig struct {
	ResendAPIKey string
	FromEmail    string
	FromName     string
	MinAge       time.Duration
	BatchSize    int
	AppBaseURL   string
}

// ReportsConfig configures asynchronous export generation.
type ReportsConfig struct {
	StorageDriver     string
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// MinIOConfig is used when Reports.StorageDriver is "minio".
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// CronConfig holds the shared secret for trigger endpoints and the
// schedules used by cmd/scheduler.
type CronConfig struct {
	Secret             string
	AlertsSchedule     string
	DeliveriesSchedule string
	InsightsSchedule   string
	HighRiskSchedule   string
}

// NarratorConfig enables generated insight descriptions.
type NarratorConfig struct {
	AnthropicAPIKey string
	Model           string
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

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

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

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:      v.GetString("LOG_LEVEL"),
		Format:     v.GetString("LOG_FORMAT"),
		File:       v.GetString("LOG_FILE"),
		MaxSizeMB:  v.GetInt("LOG_MAX_SIZE_MB"),
		MaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
		MaxAgeDays: v.GetInt("LOG_MAX_AGE_DAYS"),
	}

	cfg.RateLimit = RateLimitConfig{
		LoginPerMinute: v.GetInt("RATE_LIMIT_LOGIN_PER_MINUTE"),
		APIPerMinute:   v.GetInt("RATE_LIMIT_API_PER_MINUTE"),
	}

	cfg.Analytics = AnalyticsConfig{
		CacheEnabled: v.GetBool("ANALYTICS_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("ANALYTICS_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Alerts = AlertsConfig{
		NotifyCritical: v.GetBool("ALERTS_NOTIFY_CRITICAL"),
		SlackToken:     v.GetString("SLACK_BOT_TOKEN"),
		SlackChannel:   v.GetString("SLACK_ALERT_CHANNEL"),
	}

	cfg.Delivery = DeliveryConfig{
		ResendAPIKey: v.GetString("RESEND_API_KEY"),
		FromEmail:    v.GetString("EMAIL_FROM"),
		FromName:     v.GetString("EMAIL_FROM_NAME"),
		MinAge:       parseDuration(v.GetString("DELIVERY_MIN_AGE"), 5*time.Minute),
		BatchSize:    v.GetInt("DELIVERY_BATCH_SIZE"),
		AppBaseURL:   strings.TrimRight(v.GetString("APP_BASE_URL"), "/"),
	}

	cfg.Reports = ReportsConfig{
		StorageDriver:     v.GetString("REPORTS_STORAGE_DRIVER"),
		StorageDir:        v.GetString("REPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("REPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("REPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("REPORTS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("REPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("REPORTS_WORKER_RETRIES"),
	}

	cfg.MinIO = MinIOConfig{
		Endpoint:  v.GetString("MINIO_ENDPOINT"),
		AccessKey: v.GetString("MINIO_ACCESS_KEY"),
		SecretKey: v.GetString("MINIO_SECRET_KEY"),
		Bucket:    v.GetString("MINIO_BUCKET"),
		Region:    v.GetString("MINIO_REGION"),
		UseSSL:    v.GetBool("MINIO_USE_SSL"),
	}

	cfg.Cron = CronConfig{
		Secret:             v.GetString("CRON_SECRET"),
		AlertsSchedule:     v.GetString("CRON_ALERTS_SCHEDULE"),
		DeliveriesSchedule: v.GetString("CRON_DELIVERIES_SCHEDULE"),
		InsightsSchedule:   v.GetString("CRON_INSIGHTS_SCHEDULE"),
		HighRiskSchedule:   v.GetString("CRON_HIGH_RISK_SCHEDULE"),
	}

	cfg.Narrator = NarratorConfig{
		AnthropicAPIKey: v.GetString("ANTHROPIC_API_KEY"),
		Model:           v.GetString("NARRATOR_MODEL"),
	}

	cfg.Thresholds = thresholdsFromViper(v)
	if path := v.GetString("THRESHOLDS_FILE"); path != "" {
		if err := cfg.Thresholds.MergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "tutor_insights")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "12h")
	v.SetDefault("JWT_ISSUER", "tutor-insights-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("LOG_MAX_SIZE_MB", 50)
	v.SetDefault("LOG_MAX_BACKUPS", 5)
	v.SetDefault("LOG_MAX_AGE_DAYS", 14)

	v.SetDefault("RATE_LIMIT_LOGIN_PER_MINUTE", 5)
	v.SetDefault("RATE_LIMIT_API_PER_MINUTE", 300)

	v.SetDefault("ANALYTICS_CACHE_ENABLED", true)
	v.SetDefault("ANALYTICS_CACHE_TTL", "10m")

	v.SetDefault("ALERTS_NOTIFY_CRITICAL", false)
	v.SetDefault("SLACK_BOT_TOKEN", "")
	v.SetDefault("SLACK_ALERT_CHANNEL", "")

	v.SetDefault("RESEND_API_KEY", "")
	v.SetDefault("EMAIL_FROM", "coaching@example.com")
	v.SetDefault("EMAIL_FROM_NAME", "Tutor Success Team")
	v.SetDefault("DELIVERY_MIN_AGE", "5m")
	v.SetDefault("DELIVERY_BATCH_SIZE", 100)
	v.SetDefault("APP_BASE_URL", "http://localhost:3000")

	v.SetDefault("REPORTS_STORAGE_DRIVER", "local")
	v.SetDefault("REPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("REPORTS_SIGNED_URL_SECRET", "dev_reports_secret")
	v.SetDefault("REPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("REPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("REPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("REPORTS_WORKER_RETRIES", 3)

	v.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")
	v.SetDefault("MINIO_BUCKET", "tutor-insights-exports")
	v.SetDefault("MINIO_REGION", "us-east-1")
	v.SetDefault("MINIO_USE_SSL", false)

	v.SetDefault("CRON_SECRET", "")
	v.SetDefault("CRON_ALERTS_SCHEDULE", "0 * * * *")
	v.SetDefault("CRON_DELIVERIES_SCHEDULE", "*/10 * * * *")
	v.SetDefault("CRON_INSIGHTS_SCHEDULE", "0 3 * * *")
	v.SetDefault("CRON_HIGH_RISK_SCHEDULE", "30 6 * * *")

	v.SetDefault("ANTHROPIC_API_KEY", "")
	v.SetDefault("NARRATOR_MODEL", "claude-3-5-haiku-latest")

	v.SetDefault("THRESHOLDS_FILE", "")
	setThresholdDefaults(v)
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

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
