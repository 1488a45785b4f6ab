package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestLoadAndValidate(t *testing.T) {
	v := viper.New()
	v.Set("http_port", "8080")
	v.Set("enqueue_timeout", "2s")

	cfg := Load(v)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 2*time.Second, cfg.EnqueueTimeout)

	err := cfg.Validate()
	assert.ErrorContains(t, err, "slack_signing_secret")
	assert.ErrorContains(t, err, "slack_task_channel")

	v.Set("slack_signing_secret", "x")
	v.Set("slack_task_channel", "CTASK")
	assert.NoError(t, Load(v).Validate())
}
