package config

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	d := Default()

	assert.Equal(t, "development", d.EnvName)
	assert.Equal(t, "info", d.LogLevel)
	assert.Equal(t, ":8080", d.ServerAddress)
	assert.Equal(t, 10*time.Minute, d.SessionDefaultKeepAlive)
	assert.Equal(t, 30*time.Second, d.SessionReapInterval)
	assert.Equal(t, 10*time.Minute, d.RedisSchemaTTL)
	assert.NotEmpty(t, d.UploadDir)
}

func newBoundViper(t *testing.T, args ...string) *viper.Viper {
	t.Helper()

	v := viper.New()
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	BindFlags(cmd.Flags(), v)

	cmd.SetArgs(args)
	require.NoError(t, cmd.ParseFlags(args))

	return v
}

func TestLoadDefaults(t *testing.T) {
	v := newBoundViper(t)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.EnvName)
	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Empty(t, cfg.FlightAddress)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, 10*time.Minute, cfg.RedisSchemaTTL)
	assert.Equal(t, 10*time.Minute, cfg.SessionDefaultKeepAlive)
	assert.Equal(t, 30*time.Second, cfg.SessionReapInterval)
}

func TestLoadOverridesFromFlags(t *testing.T) {
	v := newBoundViper(t,
		"--server-address", ":9090",
		"--flight-address", ":9091",
		"--redis-addr", "localhost:6379",
		"--redis-schema-ttl", "5m",
		"--upload-max-bytes", "1024",
	)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerAddress)
	assert.Equal(t, ":9091", cfg.FlightAddress)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 5*time.Minute, cfg.RedisSchemaTTL)
	assert.EqualValues(t, 1024, cfg.UploadMaxBytes)
}

func TestLoadAppliesFallbackDefaultsWhenZero(t *testing.T) {
	v := newBoundViper(t, "--redis-schema-ttl", "0s", "--session-default-keep-alive", "0s", "--session-reap-interval", "0s")

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.RedisSchemaTTL)
	assert.Equal(t, time.Minute, cfg.SessionDefaultKeepAlive)
	assert.Equal(t, 30*time.Second, cfg.SessionReapInterval)
}
