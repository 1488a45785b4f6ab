package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds typed configuration for the events service.
type Config struct {
	LogLevel           string
	HTTPPort           string
	MetricsAddr        string
	KafkaBrokers       string
	RedisAddr          string
	PostgresDSN        string
	OTelEndpoint       string
	SlackSigningSecret string
	SlackTaskChannel   string
	SlackBotUserID     string
	EnqueueTimeout     time.Duration
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	return Config{
		LogLevel:           v.GetString("log_level"),
		HTTPPort:           v.GetString("http_port"),
		MetricsAddr:        v.GetString("metrics_addr"),
		KafkaBrokers:       v.GetString("kafka_brokers"),
		RedisAddr:          v.GetString("redis_addr"),
		PostgresDSN:        v.GetString("postgres_dsn"),
		OTelEndpoint:       v.GetString("otel_endpoint"),
		SlackSigningSecret: v.GetString("slack_signing_secret"),
		SlackTaskChannel:   v.GetString("slack_task_channel"),
		SlackBotUserID:     v.GetString("slack_bot_user_id"),
		EnqueueTimeout:     v.GetDuration("enqueue_timeout"),
	}
}

// Validate reports settings the service cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.SlackSigningSecret == "" {
		errs = append(errs, errors.New("slack_signing_secret is required"))
	}
	if c.SlackTaskChannel == "" {
		errs = append(errs, errors.New("slack_task_channel is required"))
	}
	return errors.Join(errs...)
}
