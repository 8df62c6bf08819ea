package vault_config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	BackendLocal    = "local"
	BackendS3       = "s3"
	BackendRedis    = "redis"
	BackendHTTP     = "http"
	BackendPostgres = "postgres"

	DefaultAccessConfigPath = "ksm_config.json"
)

// AccessConfig is the connection profile of the vault client. Only one backend section
// is read, selected by Backend.
type AccessConfig struct {
	Backend     string `mapstructure:"backend" json:"backend" validate:"required,oneof=local s3 redis http postgres"`
	Application string `mapstructure:"application" json:"application,omitempty"`
	// ReadOnly deployments can fetch records but never update them.
	ReadOnly bool `mapstructure:"read_only" json:"read_only,omitempty"`

	Local        LocalStorage `mapstructure:"local" json:"local,omitempty"`
	BlockStorage BlockStorage `mapstructure:"block_storage" json:"block_storage,omitempty"`
	Redis        Redis        `mapstructure:"redis" json:"redis,omitempty"`
	Remote       Remote       `mapstructure:"remote" json:"remote,omitempty"`
	Postgres     Postgres     `mapstructure:"postgres" json:"postgres,omitempty"`
}

type LocalStorage struct {
	RecordsPath string `mapstructure:"records_path" json:"records_path"`
}

type BlockStorage struct {
	Host      string `mapstructure:"host" json:"host"`
	Region    string `mapstructure:"region" json:"region"`
	AccessKey string `mapstructure:"access_key" json:"access_key"`
	SecretKey string `mapstructure:"secret" json:"secret"`
	Bucket    string `mapstructure:"bucket" json:"bucket"`
	Prefix    string `mapstructure:"prefix" json:"prefix,omitempty"`
}

type Redis struct {
	ConnURI   string `mapstructure:"conn_uri" json:"conn_uri,omitempty"`
	Host      string `mapstructure:"host" json:"host,omitempty"`
	Port      string `mapstructure:"port" json:"port,omitempty"`
	User      string `mapstructure:"user" json:"user,omitempty"`
	Password  string `mapstructure:"password" json:"password,omitempty"`
	DB        int    `mapstructure:"db" json:"db,omitempty"`
	KeyPrefix string `mapstructure:"key_prefix" json:"key_prefix,omitempty"`
}

type Remote struct {
	URL     string        `mapstructure:"url" json:"url" validate:"omitempty,url"`
	Token   string        `mapstructure:"token" json:"token,omitempty"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout,omitempty"`
}

type Postgres struct {
	DSN string `mapstructure:"dsn" json:"dsn"`
}

var validate = validator.New()

// Validate checks the profile shape and the fields the selected backend needs.
func (c *AccessConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid access config: %w", err)
	}

	var missing []string
	switch c.Backend {
	case BackendLocal:
		if c.Local.RecordsPath == "" {
			missing = append(missing, "local.records_path")
		}
	case BackendS3:
		if c.BlockStorage.Bucket == "" {
			missing = append(missing, "block_storage.bucket")
		}
	case BackendRedis:
		if c.Redis.ConnURI == "" && c.Redis.Host == "" {
			missing = append(missing, "redis.conn_uri or redis.host")
		}
	case BackendHTTP:
		if c.Remote.URL == "" {
			missing = append(missing, "remote.url")
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			missing = append(missing, "postgres.dsn")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("invalid access config: %s backend requires %s", c.Backend, strings.Join(missing, ", "))
	}
	return nil
}

// ErrProfileNotFound is returned when the profile file does not exist.
var ErrProfileNotFound = errors.New("access config file not found")

// LoadAccessConfig reads and validates the profile at path.
func LoadAccessConfig(path string) (*AccessConfig, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, path)
		}
		return nil, fmt.Errorf("os.Stat failed: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("fail to read access config %s: %w", path, err)
	}

	var cfg AccessConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode access config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
