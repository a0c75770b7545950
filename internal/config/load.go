package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BindFlags registers the server's flags on f and binds them into v,
// mirroring the bindFlag helper joestump-claude-ops uses in its cobra
// root command.
func BindFlags(f *pflag.FlagSet, v *viper.Viper) {
	d := Default()

	f.String("env-name", d.EnvName, "deployment environment name")
	f.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	f.String("server-address", d.ServerAddress, "HTTP listen address")
	f.String("flight-address", "", "Arrow Flight gRPC listen address (empty disables it)")
	f.String("base-path", d.BasePath, "HTTP base path prefix")
	f.Duration("session-default-keep-alive", d.SessionDefaultKeepAlive, "default session TTL")
	f.Duration("session-reap-interval", d.SessionReapInterval, "session reaper sweep interval")
	f.Int64("upload-max-bytes", d.UploadMaxBytes, "maximum multipart upload size in bytes")
	f.String("upload-dir", d.UploadDir, "directory multipart uploads are materialized into")
	f.String("redis-addr", "", "redis address caching external-db table schemas (empty disables it)")
	f.Duration("redis-schema-ttl", d.RedisSchemaTTL, "TTL for cached external-db table schemas")
	f.String("config", "", "path to a YAML config file")

	bind := func(key, flag string) { _ = v.BindPFlag(key, f.Lookup(flag)) }
	bind("env_name", "env-name")
	bind("log_level", "log-level")
	bind("server_address", "server-address")
	bind("flight_address", "flight-address")
	bind("base_path", "base-path")
	bind("session_default_keep_alive", "session-default-keep-alive")
	bind("session_reap_interval", "session-reap-interval")
	bind("upload_max_bytes", "upload-max-bytes")
	bind("upload_dir", "upload-dir")
	bind("redis_addr", "redis-addr")
	bind("redis_schema_ttl", "redis-schema-ttl")
	bind("config", "config")

	v.SetEnvPrefix("DFS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// Load reads the server configuration from v, which BindFlags has
// already wired to flags and DFS_* environment variables. If a
// "config" file path was supplied it is merged in first so explicit
// flags/env still win, the same precedence viper.MergeInConfig gives
// for free when called before BindPFlag resolution.
func Load(v *viper.Viper) (Config, error) {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return Config{}, err
		}
	}

	cfg := Config{
		EnvName:                 v.GetString("env_name"),
		LogLevel:                v.GetString("log_level"),
		Version:                 version,
		ServerAddress:           v.GetString("server_address"),
		FlightAddress:           v.GetString("flight_address"),
		BasePath:                v.GetString("base_path"),
		SessionDefaultKeepAlive: v.GetDuration("session_default_keep_alive"),
		SessionReapInterval:     v.GetDuration("session_reap_interval"),
		UploadMaxBytes:          v.GetInt64("upload_max_bytes"),
		UploadDir:               v.GetString("upload_dir"),
		RedisAddr:               v.GetString("redis_addr"),
		RedisSchemaTTL:          v.GetDuration("redis_schema_ttl"),
	}

	if cfg.RedisSchemaTTL <= 0 {
		cfg.RedisSchemaTTL = 10 * time.Minute
	}

	if err := v.UnmarshalKey("object_stores", &cfg.ObjectStores); err != nil {
		return Config{}, err
	}

	if err := v.UnmarshalKey("external_dbs", &cfg.ExternalDBs); err != nil {
		return Config{}, err
	}

	if err := v.UnmarshalKey("plugins", &cfg.Plugins); err != nil {
		return Config{}, err
	}

	if cfg.SessionDefaultKeepAlive <= 0 {
		cfg.SessionDefaultKeepAlive = time.Minute
	}

	if cfg.SessionReapInterval <= 0 {
		cfg.SessionReapInterval = 30 * time.Second
	}

	return cfg, nil
}

// version is set at build time via -ldflags "-X ... version=...".
var version = "dev"
