package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

var (
	current   *Config
	currentMu sync.RWMutex
)

// envBindings maps short environment names onto nested keys, on top of the
// automatic GOTUNE_<SECTION>_<KEY> mapping.
var envBindings = map[string]string{
	"data_dir":          "DATA_DIR",
	"registry_path":     "REGISTRY",
	"logging.level":     "LOG_LEVEL",
	"server.host":       "HOST",
	"server.port":       "PORT",
	"remote.binary":     "FIRECTL",
	"remote.account_id": "ACCOUNT_ID",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "")
	v.SetDefault("registry_path", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "console")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("remote.binary", "firectl")
	v.SetDefault("remote.account_id", "")
	v.SetDefault("remote.rate_limit", 2.0)

	v.SetDefault("poll.interval", "60s")
	v.SetDefault("poll.max_retries", 5)
	v.SetDefault("poll.retry_base", "2s")
	v.SetDefault("poll.retry_max", "1m")

	v.SetDefault("dataset.min_examples", 3)
	v.SetDefault("dataset.max_content_length", 4096)
	v.SetDefault("dataset.max_chunk_length", 4096)
	v.SetDefault("dataset.shard_size", 0)

	v.SetDefault("s3.region", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.profile", "")
	v.SetDefault("s3.force_path_style", false)
}

// Load resolves configuration using the config file found in the user
// config directory, if any.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	return LoadFile(ctx, "", overrides...)
}

// LoadFile is Load with an explicit config file. An explicit path must exist;
// the default location may be absent.
func LoadFile(ctx context.Context, path string, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, EnvPrefix+"_"+env, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_"))); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if dir, err := os.UserConfigDir(); err == nil {
		v.SetConfigName("config")
		v.AddConfigPath(filepath.Join(dir, AppName))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	for _, o := range overrides {
		for key, val := range flatten("", o) {
			v.Set(key, val)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.resolvePaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	currentMu.Lock()
	current = &cfg
	currentMu.Unlock()
	return &cfg, nil
}

// GetConfig returns the most recently loaded configuration, or nil.
func GetConfig() *Config {
	currentMu.RLock()
	defer currentMu.RUnlock()
	return current
}

func (c *Config) resolvePaths() {
	if c.DataDir == "" {
		c.DataDir = gfconfig.GetAppDataDir(AppName)
	}
	if c.RegistryPath == "" {
		c.RegistryPath = filepath.Join(c.DataDir, "registry.json")
	}
}

// Validate rejects values no command can work with.
func (c *Config) Validate() error {
	switch {
	case c.DataDir == "":
		return errors.New("config: data_dir could not be resolved")
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	case c.Poll.Interval < 0:
		return fmt.Errorf("config: poll.interval must not be negative")
	case c.Remote.RateLimit < 0:
		return fmt.Errorf("config: remote.rate_limit must not be negative")
	case c.Dataset.ShardSize < 0:
		return fmt.Errorf("config: dataset.shard_size must not be negative")
	}
	return nil
}

// flatten turns nested override maps into dotted viper keys so overrides
// land in viper's highest-precedence layer.
func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range m {
		key := strings.ToLower(k)
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := v.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = v
	}
	return out
}
