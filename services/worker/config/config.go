package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds typed configuration for the worker service.
type Config struct {
	LogLevel     string
	KafkaBrokers string
	RedisAddr    string
	PostgresDSN  string
	MetricsAddr  string
	OTelEndpoint string
	Timezone     string

	MaxRetries int
	JobTimeout time.Duration

	SlackBotToken    string
	SlackTaskChannel string
	SlackAPIRoot     string
	SlackRateLimit   int

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	return Config{
		LogLevel:         v.GetString("log_level"),
		KafkaBrokers:     v.GetString("kafka_brokers"),
		RedisAddr:        v.GetString("redis_addr"),
		PostgresDSN:      v.GetString("postgres_dsn"),
		MetricsAddr:      v.GetString("metrics_addr"),
		OTelEndpoint:     v.GetString("otel_endpoint"),
		Timezone:         v.GetString("timezone"),
		MaxRetries:       v.GetInt("max_retries"),
		JobTimeout:       v.GetDuration("job_timeout"),
		SlackBotToken:    v.GetString("slack_bot_token"),
		SlackTaskChannel: v.GetString("slack_task_channel"),
		SlackAPIRoot:     v.GetString("slack_api_root"),
		SlackRateLimit:   v.GetInt("slack_rate_limit"),
		OpenAIAPIKey:     v.GetString("openai_api_key"),
		OpenAIModel:      v.GetString("openai_model"),
		OpenAIBaseURL:    v.GetString("openai_base_url"),
	}
}

// Validate reports settings the worker cannot start without.
func (c Config) Validate() error {
	if c.SlackBotToken == "" {
		return fmt.Errorf("slack_bot_token is required")
	}
	if c.SlackTaskChannel == "" {
		return fmt.Errorf("slack_task_channel is required")
	}
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("openai_api_key is required")
	}
	return nil
}

// Location resolves the workspace timezone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
