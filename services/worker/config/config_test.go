package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	v := viper.New()
	v.Set("kafka_brokers", "k1:9092,k2:9092")
	v.Set("job_timeout", "4m")
	v.Set("max_retries", 5)
	v.Set("timezone", "Asia/Tokyo")
	v.Set("slack_task_channel", "CTASK")

	cfg := Load(v)
	assert.Equal(t, "k1:9092,k2:9092", cfg.KafkaBrokers)
	assert.Equal(t, 4*time.Minute, cfg.JobTimeout)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, "CTASK", cfg.SlackTaskChannel)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", loc.String())
}

func TestValidate(t *testing.T) {
	cfg := Config{SlackBotToken: "xoxb", SlackTaskChannel: "C", OpenAIAPIKey: "sk"}
	assert.NoError(t, cfg.Validate())

	cfg.SlackTaskChannel = ""
	assert.ErrorContains(t, cfg.Validate(), "slack_task_channel")
}
