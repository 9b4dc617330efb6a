// Package config loads tingo's configuration.
//
// Sources, lowest precedence first:
//   - built-in defaults
//   - an optional YAML file
//   - environment variables with the TINGO_ prefix, after loading a .env
//     file from the working directory if one exists
//
// Environment keys map onto the YAML structure by lowercasing and turning
// "_" into ".": TINGO_DATABASE_PATH sets database.path.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	// Loads .env into the process environment before any env var is read.
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tingo/internal/connector"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "TINGO_"

// DefaultPath is the database file used when none is configured.
const DefaultPath = "tingo.db"

// Config is the root configuration.
type Config struct {
	// Database configures the connector.
	Database connector.Settings `koanf:"database" validate:"required"`

	// Models is an optional CUE file with model definitions.
	Models string `koanf:"models"`

	// Logging configures the logger.
	Logging LoggingConfig `koanf:"logging" validate:"required"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is the minimum level: trace, debug, info, warn or error.
	Level string `koanf:"level" validate:"required,oneof=trace debug info warn error"`

	// Format is "console" for humans or "json" for log pipelines.
	Format string `koanf:"format" validate:"required,oneof=console json"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Database: connector.Settings{Path: DefaultPath},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// Load reads the configuration. file may be empty; a named file that does
// not exist is an error.
func Load(file string) (*Config, error) {
	k := koanf.New(".")

	if file != "" {
		if err := k.Load(yamlFile(file), nil); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cfg against its validate tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// yamlFile is a koanf provider for a YAML file.
type yamlFile string

// ReadBytes is not supported; koanf uses Read when no parser is given.
func (f yamlFile) ReadBytes() ([]byte, error) {
	return nil, errors.New("yaml file provider does not support ReadBytes")
}

// Read decodes the file into a nested map.
func (f yamlFile) Read() (map[string]any, error) {
	data, err := os.ReadFile(string(f))
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%s: %w", string(f), err)
	}
	return m, nil
}
