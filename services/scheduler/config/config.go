package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds typed configuration for the scheduler service.
type Config struct {
	LogLevel     string
	KafkaBrokers string
	RedisAddr    string
	PostgresDSN  string
	MetricsAddr  string
	OTelEndpoint string
	Timezone     string
	CronSpec     string
	ScanBatch    int
	// ClaimTTL bounds how long a dispatched job suppresses a re-enqueue of
	// the same reminder. It matches the worker's hard job limit.
	ClaimTTL time.Duration
	// LeaderTTL must exceed the interval between two CronSpec ticks.
	LeaderTTL time.Duration
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	return Config{
		LogLevel:     v.GetString("log_level"),
		KafkaBrokers: v.GetString("kafka_brokers"),
		RedisAddr:    v.GetString("redis_addr"),
		PostgresDSN:  v.GetString("postgres_dsn"),
		MetricsAddr:  v.GetString("metrics_addr"),
		OTelEndpoint: v.GetString("otel_endpoint"),
		Timezone:     v.GetString("timezone"),
		CronSpec:     v.GetString("cron_spec"),
		ScanBatch:    v.GetInt("scan_batch"),
		ClaimTTL:     v.GetDuration("claim_ttl"),
		LeaderTTL:    v.GetDuration("leader_ttl"),
	}
}
