// Package config loads the service configuration from a YAML file, with
// MIGRATIONLOCK_ prefixed environment variables taking precedence.
package config

import (
	"path/filepath"
	"time"

	"github.com/SystemBuilders/MigrationLock/internal/auth"
	"github.com/SystemBuilders/MigrationLock/internal/storage"
	"github.com/kkyr/fig"
)

// EnvPrefix prefixes the environment variables overriding the file.
const EnvPrefix = "MIGRATIONLOCK"

// LoggerConfig contains the logger settings.
type LoggerConfig struct {
	Level string `fig:"level" default:"info"`
}

// HTTPConfig contains the HTTP listener settings.
type HTTPConfig struct {
	IP              string        `fig:"ip" default:"0.0.0.0"`
	Port            int           `fig:"port" default:"8080"`
	ShutdownTimeout time.Duration `fig:"shutdown_timeout" default:"10s"`
}

// Config is the service configuration.
type Config struct {
	Logger  LoggerConfig   `fig:"logger"`
	HTTP    HTTPConfig     `fig:"http"`
	Auth    auth.Config    `fig:"auth"`
	Storage storage.Config `fig:"storage"`
}

// Load reads configFile and applies defaults and environment overrides.
func Load(configFile string) (*Config, error) {
	var cfg Config
	file := filepath.Base(configFile)
	dir := filepath.Dir(configFile)

	err := fig.Load(&cfg, fig.File(file), fig.Dirs(dir), fig.UseEnv(EnvPrefix))
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
