// Package config loads server configuration from flags, environment
// variables (DFS_* prefix) and an optional YAML file, the way
// spf13/viper layered over spf13/cobra flags is used elsewhere in the
// corpus this server's conventions are drawn from.
package config

import (
	"os"
	"time"
)

// ObjectStoreConfig is one entry of the Object-Store Registry's
// startup population list.
type ObjectStoreConfig struct {
	Scheme    string
	Authority string
	URL       string // gocloud.dev/blob bucket URL, e.g. "s3://my-bucket?region=us-east-1"
}

// ExternalDBConfig is one namespace entry of the External-DB Resolver.
type ExternalDBConfig struct {
	Namespace string
	Engine    string // "postgres" or "mysql"
	DSN       string
}

// PluginConfig registers an out-of-process extension with go-plugin.
type PluginConfig struct {
	Name    string
	Scheme  string // non-empty registers a data-source scheme
	Module  string // non-empty registers a merge/query processor
	Command string
	Args    []string
}

// Config is the top level configuration for the server process.
type Config struct {
	EnvName  string
	LogLevel string
	Version  string

	ServerAddress string // HTTP surface, e.g. ":8080"
	FlightAddress string // optional Arrow Flight gRPC surface; empty disables it
	BasePath      string

	SessionDefaultKeepAlive time.Duration
	SessionReapInterval     time.Duration

	UploadMaxBytes int64
	UploadDir      string // directory multipart uploads are materialized into before ingestion

	RedisAddr      string // empty disables the external-db schema cache
	RedisSchemaTTL time.Duration

	ObjectStores []ObjectStoreConfig
	ExternalDBs  []ExternalDBConfig
	Plugins      []PluginConfig
}

// Default returns the configuration defaults bound to cobra flags in
// cmd/datafusion-server; callers overlay viper-resolved values on top.
func Default() Config {
	return Config{
		EnvName:                 "development",
		LogLevel:                "info",
		ServerAddress:           ":8080",
		BasePath:                "",
		SessionDefaultKeepAlive: 10 * time.Minute,
		SessionReapInterval:     30 * time.Second,
		UploadMaxBytes:          256 << 20,
		UploadDir:               os.TempDir(),
		RedisSchemaTTL:          10 * time.Minute,
	}
}
