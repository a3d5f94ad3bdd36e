// Package config loads gotune settings from defaults, an optional YAML file,
// GOTUNE_* environment variables and runtime overrides, in increasing order
// of precedence.
package config

import (
	"time"
)

// AppName names the config and data directories.
const AppName = "gotune"

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "GOTUNE"

// Config is the fully resolved configuration.
type Config struct {
	// DataDir holds raw/, processed/ and the registry. Defaults to the
	// platform app data directory for gotune.
	DataDir string `mapstructure:"data_dir"`

	// RegistryPath defaults to <DataDir>/registry.json.
	RegistryPath string `mapstructure:"registry_path"`

	Logging LoggingConfig `mapstructure:"logging"`
	Server  ServerConfig  `mapstructure:"server"`
	Remote  RemoteConfig  `mapstructure:"remote"`
	Poll    PollConfig    `mapstructure:"poll"`
	Dataset DatasetConfig `mapstructure:"dataset"`
	S3      S3Config      `mapstructure:"s3"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Profile string `mapstructure:"profile"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RemoteConfig configures the provider CLI.
type RemoteConfig struct {
	Binary    string  `mapstructure:"binary"`
	AccountID string  `mapstructure:"account_id"`
	RateLimit float64 `mapstructure:"rate_limit"`
}

// PollConfig tunes job polling.
type PollConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryBase  time.Duration `mapstructure:"retry_base"`
	RetryMax   time.Duration `mapstructure:"retry_max"`
}

// DatasetConfig bounds conversion and validation.
type DatasetConfig struct {
	MinExamples      int `mapstructure:"min_examples"`
	MaxContentLength int `mapstructure:"max_content_length"`
	MaxChunkLength   int `mapstructure:"max_chunk_length"`
	ShardSize        int `mapstructure:"shard_size"`
}

// S3Config applies to s3:// staging sources.
type S3Config struct {
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint"`
	Profile        string `mapstructure:"profile"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
	DisableIMDS    bool   `mapstructure:"disable_imds"`
}
