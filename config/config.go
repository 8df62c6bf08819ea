package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vultisig/tokensync/internal/linkage"
	"github.com/vultisig/tokensync/internal/logging"
	"github.com/vultisig/tokensync/internal/metrics"
	"github.com/vultisig/tokensync/vault_config"
)

const (
	ConfigNameEnv  = "TOKENSYNC_CONFIG_NAME"
	EnvPrefix      = "TOKENSYNC"
	DefaultTimeout = 2 * time.Minute
)

// Config is the process configuration shared by jwt-issuer and jwt-sync.
type Config struct {
	LogFormat           logging.LogFormat `mapstructure:"log_format" json:"log_format,omitempty"`
	LogLevel            string            `mapstructure:"log_level" json:"log_level,omitempty"`
	AppConfig           string            `mapstructure:"app_config" json:"app_config,omitempty"`
	AccessConfig        string            `mapstructure:"access_config" json:"access_config,omitempty"`
	ExpectedApplication string            `mapstructure:"expected_application" json:"expected_application,omitempty"`
	Timeout             time.Duration     `mapstructure:"timeout" json:"timeout,omitempty"`
	Metrics             metrics.Config    `mapstructure:"metrics" json:"metrics,omitempty"`
}

// flag name -> config key
var flagKeys = map[string]string{
	"app-config":    "app_config",
	"access-config": "access_config",
	"log-format":    "log_format",
}

// RegisterFlags adds the flags ReadConfig understands to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config-name", "", "config file name without extension (default $"+ConfigNameEnv+" or \"config\")")
	fs.String("app-config", linkage.DefaultAppConfigPath, "path to the app linkage file")
	fs.String("access-config", vault_config.DefaultAccessConfigPath, "path to the vault access profile")
	fs.String("log-format", string(logging.FormatText), "log format: text or json")
}

// ReadConfig merges flags, TOKENSYNC_* environment variables, the optional config
// file and defaults, in that order of precedence. fs may be nil.
func ReadConfig(fs *pflag.FlagSet) (*Config, error) {
	configName := os.Getenv(ConfigNameEnv)
	if fs != nil {
		if name, err := fs.GetString("config-name"); err == nil && name != "" {
			configName = name
		}
	}
	if configName == "" {
		configName = "config"
	}

	v := viper.New()
	v.SetConfigName(configName)
	v.AddConfigPath(".")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log_format", string(logging.FormatText))
	v.SetDefault("log_level", "info")
	v.SetDefault("app_config", linkage.DefaultAppConfigPath)
	v.SetDefault("access_config", vault_config.DefaultAccessConfigPath)
	v.SetDefault("expected_application", "")
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", metrics.DefaultJob)

	if fs != nil {
		for name, key := range flagKeys {
			if flag := fs.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("fail to reading config file, %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	var format logging.LogFormat
	if err := format.UnmarshalText([]byte(c.LogFormat)); err != nil {
		return err
	}
	c.LogFormat = format
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Metrics.Job == "" {
		c.Metrics.Job = metrics.DefaultJob
	}
	return nil
}
