package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig() *Config {
	v := viper.New()
	setDefaults(v)
	return fromViper(v)
}

func TestDefaultsMatchReminderConstants(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 30*time.Minute, cfg.Reminders.Offset)
	assert.Equal(t, 2*time.Minute, cfg.Reminders.HalfWidth)
	assert.Equal(t, time.Minute, cfg.Reminders.Interval)
	assert.Equal(t, 10*time.Second, cfg.Reminders.DispatchTimeout)
	assert.Equal(t, time.Minute, cfg.Reminders.LockTTL)
	assert.Equal(t, "Asia/Manila", cfg.Reminders.DefaultTimezone)
	assert.False(t, cfg.Reminders.Disabled)
	assert.False(t, cfg.Mail.MailEnabled())
	assert.False(t, cfg.SMS.SMSEnabled())
}

func TestDisabledFlagFromEnvironment(t *testing.T) {
	t.Setenv("REMINDERS_DISABLED", "true")
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := fromViper(v)
	assert.True(t, cfg.Reminders.Disabled)
}

func TestValidateRejectsSparseInterval(t *testing.T) {
	cfg := defaultConfig()
	cfg.Reminders.Interval = 5 * time.Minute

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REMINDERS_INTERVAL")
}

func TestValidateRejectsWindowWiderThanOffset(t *testing.T) {
	cfg := defaultConfig()
	cfg.Reminders.Offset = time.Minute
	cfg.Reminders.Interval = time.Minute

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REMINDERS_WINDOW_HALF_WIDTH")
}

func TestValidateRejectsBadFields(t *testing.T) {
	cfg := defaultConfig()
	cfg.Reminders.Concurrency = 0
	require.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Log.Format = "xml"
	require.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Mail.BaseURL = "not a url"
	require.Error(t, cfg.Validate())
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Second, parseDuration("", time.Second))
	assert.Equal(t, time.Second, parseDuration("soon", time.Second))
	assert.Equal(t, 90*time.Second, parseDuration("90s", time.Second))
}
