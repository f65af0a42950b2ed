// Package config loads the dbi configuration from config files, .env files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/hazaarlabs/dbi/internal/adapters/database"
	"github.com/hazaarlabs/dbi/internal/adapters/telemetry"
	"github.com/hazaarlabs/dbi/internal/core/query/domain"
)

var AppFs = afero.NewOsFs()

// FileName is the base name of the configuration file.
const FileName = ".dbi"

// Config holds the application configuration
type Config struct {
	Dialect        string
	DatabaseURL    string
	Schema         string
	ServerVersion  string
	Debug          bool
	LogFormat      string
	MaxConnections int
	ConnectTimeout int // seconds
	BindValues     bool
	Telemetry      string
}

// LoadConfig loads configuration from various sources. When file is not empty it is
// read instead of searching the working, home and ~/.config/dbi directories.
func LoadConfig(file string) (*Config, error) {
	v := viper.New()
	v.SetFs(AppFs)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return nil, err
		}
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(home)
		v.AddConfigPath(filepath.Join(home, ".config", "dbi"))
	}

	v.SetEnvPrefix("DBI")
	v.AutomaticEnv()

	v.SetDefault("dialect", string(domain.PostgreSQL))
	v.SetDefault("log_format", "text")
	v.SetDefault("max_connections", 10)
	v.SetDefault("connect_timeout", 10)
	v.SetDefault("telemetry", "noop")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	loadDotEnv()

	cfg := &Config{
		Dialect:        v.GetString("dialect"),
		DatabaseURL:    v.GetString("database_url"),
		Schema:         v.GetString("schema"),
		ServerVersion:  v.GetString("server_version"),
		Debug:          v.GetBool("debug"),
		LogFormat:      v.GetString("log_format"),
		MaxConnections: v.GetInt("max_connections"),
		ConnectTimeout: v.GetInt("connect_timeout"),
		BindValues:     v.GetBool("bind_values"),
		Telemetry:      v.GetString("telemetry"),
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	return cfg, cfg.Validate()
}

// loadDotEnv loads .env and then .env.local, which takes priority.
func loadDotEnv() {
	if _, err := AppFs.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
	if _, err := AppFs.Stat(".env.local"); err == nil {
		_ = godotenv.Overload(".env.local")
	}
}

// Validate checks the dialect, telemetry type and pool settings.
func (c *Config) Validate() error {
	if _, ok := domain.ParseDialect(c.Dialect); !ok {
		return fmt.Errorf("unsupported dialect: %s", c.Dialect)
	}
	if _, err := telemetry.ParseType(c.Telemetry); err != nil {
		return err
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("max_connections must not be negative")
	}
	return nil
}

// Database returns the adapter configuration.
func (c *Config) Database() database.Config {
	d, _ := domain.ParseDialect(c.Dialect)
	return database.Config{
		Provider:       string(d),
		URL:            c.DatabaseURL,
		Schema:         c.Schema,
		ServerVersion:  c.ServerVersion,
		MaxConnections: c.MaxConnections,
		ConnectTimeout: c.ConnectTimeout,
		BindValues:     c.BindValues,
	}
}

// SaveConfig saves configuration to file. An empty file writes ~/.config/dbi/.dbi.yaml.
// The database URL is not saved; it belongs in the environment.
func SaveConfig(cfg *Config, file string) (string, error) {
	v := viper.New()
	v.SetFs(AppFs)

	v.Set("dialect", cfg.Dialect)
	v.Set("schema", cfg.Schema)
	v.Set("server_version", cfg.ServerVersion)
	v.Set("debug", cfg.Debug)
	v.Set("log_format", cfg.LogFormat)
	v.Set("max_connections", cfg.MaxConnections)
	v.Set("connect_timeout", cfg.ConnectTimeout)
	v.Set("bind_values", cfg.BindValues)
	v.Set("telemetry", cfg.Telemetry)

	if file == "" {
		home, err := homedir.Dir()
		if err != nil {
			return "", err
		}
		file = filepath.Join(home, ".config", "dbi", FileName+".yaml")
	}
	if err := AppFs.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return "", err
	}
	return file, v.WriteConfigAs(file)
}
