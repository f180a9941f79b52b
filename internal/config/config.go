package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Bus            BusConfig            `mapstructure:"bus"`
	DLQ            DLQConfig            `mapstructure:"dlq"`
	Engine         EngineConfig         `mapstructure:"engine"`
	Providers      ProvidersConfig      `mapstructure:"providers"`
	Notifications  NotificationsConfig  `mapstructure:"notifications"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig `mapstructure:"postgres"`
	Redis         RedisConfig    `mapstructure:"redis"`
	RunMigrations bool           `mapstructure:"run_migrations"`
	MigrationsDir string         `mapstructure:"migrations_dir"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type BusConfig struct {
	Type           string        `mapstructure:"type"` // "redis" or "kafka"
	Stream         string        `mapstructure:"stream"`
	Group          string        `mapstructure:"group"`
	Consumer       string        `mapstructure:"consumer"`
	ReadCount      int64         `mapstructure:"read_count"`
	BlockTimeout   time.Duration `mapstructure:"block_timeout"`
	IdempotencyCap int64         `mapstructure:"idempotency_cap"`
	Kafka          KafkaConfig   `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type DLQConfig struct {
	MaxLength         int64 `mapstructure:"max_length"`
	ReplayConcurrency int64 `mapstructure:"replay_concurrency"`
}

type EngineConfig struct {
	ReloadIntervalSeconds int `mapstructure:"reload_interval_seconds"`
}

type ProvidersConfig struct {
	Primary  ProviderConfig `mapstructure:"primary"`
	Fallback ProviderConfig `mapstructure:"fallback"`
	Retries  int            `mapstructure:"retries"`
}

type ProviderConfig struct {
	Name    string        `mapstructure:"name"`
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type NotificationsConfig struct {
	SlackWebhookURL string `mapstructure:"slack_webhook_url"`
	EmailWebhookURL string `mapstructure:"email_webhook_url"`
	SMSWebhookURL   string `mapstructure:"sms_webhook_url"`
}

type CircuitBreakerConfig struct {
	Threshold    int           `mapstructure:"threshold"`
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`
}

type RateLimitConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	RPS         float64 `mapstructure:"rps"`
	Burst       int     `mapstructure:"burst"`
	MaxRequests int     `mapstructure:"max_requests"`
	WindowSecs  int     `mapstructure:"window_seconds"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	OTLP        struct {
		Endpoint string `mapstructure:"endpoint"`
		Insecure bool   `mapstructure:"insecure"`
	} `mapstructure:"otlp"`
}
