package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"pulse/internal/constants"
)

func Load(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvVariables()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func bindEnvVariables() {
	viper.BindEnv("bus.type", "BUS_TYPE")
	viper.BindEnv("bus.stream", "BUS_STREAM")
	viper.BindEnv("bus.group", "BUS_GROUP")
	viper.BindEnv("bus.consumer", "BUS_CONSUMER")
	viper.BindEnv("bus.kafka.brokers", "BUS_KAFKA_BROKERS")
	viper.BindEnv("bus.kafka.topic", "BUS_KAFKA_TOPIC")

	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("server.port", "SERVER_PORT")

	viper.BindEnv("providers.primary.url", "PROVIDERS_PRIMARY_URL")
	viper.BindEnv("providers.primary.api_key", "PROVIDERS_PRIMARY_API_KEY")
	viper.BindEnv("providers.fallback.url", "PROVIDERS_FALLBACK_URL")
	viper.BindEnv("providers.fallback.api_key", "PROVIDERS_FALLBACK_API_KEY")

	viper.BindEnv("notifications.slack_webhook_url", "NOTIFICATIONS_SLACK_WEBHOOK_URL")
	viper.BindEnv("notifications.email_webhook_url", "NOTIFICATIONS_EMAIL_WEBHOOK_URL")
	viper.BindEnv("notifications.sms_webhook_url", "NOTIFICATIONS_SMS_WEBHOOK_URL")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func setDefaults() {
	viper.SetDefault("bus.type", "redis")
	viper.SetDefault("bus.stream", constants.DefaultStream)
	viper.SetDefault("bus.group", constants.DefaultConsumerGroup)
	viper.SetDefault("bus.read_count", constants.DefaultReadCount)
	viper.SetDefault("bus.block_timeout", constants.DefaultBlockTimeout)
	viper.SetDefault("bus.idempotency_cap", constants.DefaultIdempotencyCap)

	viper.SetDefault("dlq.max_length", constants.DefaultDLQMaxLength)
	viper.SetDefault("dlq.replay_concurrency", constants.DefaultReplayConcurrency)

	viper.SetDefault("engine.reload_interval_seconds", constants.DefaultRulesReloadSeconds)

	viper.SetDefault("database.run_migrations", false)
	viper.SetDefault("database.migrations_dir", "migrations/postgres")

	viper.SetDefault("providers.retries", 2)

	viper.SetDefault("circuit_breaker.threshold", 5)
	viper.SetDefault("circuit_breaker.reset_timeout", "60s")

	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.rps", 10.0)
	viper.SetDefault("rate_limit.burst", 20)
	viper.SetDefault("rate_limit.max_requests", 100)
	viper.SetDefault("rate_limit.window_seconds", 60)

	viper.SetDefault("logging.level", "info")
}
