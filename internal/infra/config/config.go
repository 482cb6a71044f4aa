package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFile       = "gomodpack.yaml"
	DockerDefaultFile = "/config/gomodpack.yaml"
	EnvPrefix         = "GOMODPACK"
)

type Config struct {
	CurseForge CurseForgeConfig `mapstructure:"curseforge" yaml:"curseforge"`
	Download   DownloadConfig   `mapstructure:"download" yaml:"download"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store"`

	Port string `mapstructure:"port" yaml:"port"`

	// File is the config file that was read, empty when running on defaults and env only.
	File string `mapstructure:"-" yaml:"-"`
}

type CurseForgeConfig struct {
	// APIKey switches the client to the authenticated API. Empty means the public site endpoints.
	APIKey  string        `mapstructure:"api_key" yaml:"api_key"`
	APIURL  string        `mapstructure:"api_url" yaml:"api_url"`
	WebURL  string        `mapstructure:"web_url" yaml:"web_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type DownloadConfig struct {
	Workers      int           `mapstructure:"workers" yaml:"workers"`
	MaxRetries   int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
	RootDir      string        `mapstructure:"root_dir" yaml:"root_dir"`
	ModsDir      string        `mapstructure:"mods_dir" yaml:"mods_dir"`
	TempDir      string        `mapstructure:"temp_dir" yaml:"temp_dir"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

type StoreConfig struct {
	Driver      string `mapstructure:"driver" yaml:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
}

// Load reads path, or the default locations when path is empty. A missing
// default file is fine, every key has a default and can come from the
// environment (GOMODPACK_CURSEFORGE_API_KEY and so on).
func Load(path string) (*Config, error) {
	file, err := locate(path)
	if err != nil {
		return nil, err
	}

	v := viper.New()

	// Set Defaults. Every key needs one so AutomaticEnv can see it.
	v.SetDefault("port", "8080")
	v.SetDefault("curseforge.api_key", "")
	v.SetDefault("curseforge.api_url", "https://api.curseforge.com/v1/")
	v.SetDefault("curseforge.web_url", "https://www.curseforge.com/api/v1/")
	v.SetDefault("curseforge.timeout", "60s")
	v.SetDefault("download.workers", 5)
	v.SetDefault("download.max_retries", 2)
	v.SetDefault("download.retry_backoff", "1s")
	v.SetDefault("download.root_dir", "modpacks")
	v.SetDefault("download.mods_dir", "mods")
	v.SetDefault("download.temp_dir", "")
	v.SetDefault("log.path", "gomodpack.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "gomodpack.db")
	v.SetDefault("store.postgres_dsn", "")

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", file, err)
		}
	}

	// Support Environment Variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.File = file

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func locate(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config file not found: %s", path)
		}
		return path, nil
	}

	for _, candidate := range []string{DefaultFile, DockerDefaultFile} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}

func (c *Config) validate() error {
	if c.Download.Workers <= 0 {
		// Default to a sane value
		c.Download.Workers = 5
	}

	if c.Download.MaxRetries < 0 {
		return fmt.Errorf("download.max_retries must not be negative, got %d", c.Download.MaxRetries)
	}

	if c.Download.RetryBackoff < 0 {
		return errors.New("download.retry_backoff must not be negative")
	}

	if c.Download.RootDir == "" {
		c.Download.RootDir = "modpacks"
	}

	if c.Download.ModsDir == "" {
		c.Download.ModsDir = "mods"
	}

	if c.CurseForge.Timeout <= 0 {
		c.CurseForge.Timeout = 60 * time.Second
	}

	c.Store.Driver = strings.ToLower(c.Store.Driver)
	switch c.Store.Driver {
	case "", "sqlite":
		c.Store.Driver = "sqlite"
		if c.Store.SQLitePath == "" {
			c.Store.SQLitePath = "gomodpack.db"
		}
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return errors.New("store.postgres_dsn is required when store.driver is postgres")
		}
	case "none":
	default:
		return fmt.Errorf("unknown store.driver %q (sqlite, postgres, none)", c.Store.Driver)
	}

	return nil
}

// Authenticated reports whether an API key is configured.
func (c *Config) Authenticated() bool {
	return c.CurseForge.APIKey != ""
}

// Dump renders the effective configuration as YAML with secrets masked.
func (c *Config) Dump() ([]byte, error) {
	masked := *c
	if masked.CurseForge.APIKey != "" {
		masked.CurseForge.APIKey = "********"
	}
	if masked.Store.PostgresDSN != "" {
		masked.Store.PostgresDSN = "********"
	}
	return yaml.Marshal(&masked)
}
