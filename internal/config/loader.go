// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Populate BuildInfo from linker-injected variables.
//  5. Validate the struct using go-playground/validator.
//  6. Apply cross-field rules the struct tags cannot express.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by LoadConfig.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// LoadConfig loads and validates the skyview configuration.
// dotenvFiles are passed to godotenv; with none, ".env" in the working
// directory is tried. Variables already present in the environment win over
// dotenv values.
func LoadConfig(dotenvFiles ...string) (*Config, error) {
	time.Local = time.UTC

	// A missing .env file is normal outside local development.
	_ = godotenv.Load(dotenvFiles...)

	// The empty prefix makes envconfig read the exact tag values
	// (envconfig:"PORT" reads PORT directly).
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	if err := checkConditional(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// checkConditional enforces requirements that depend on other settings.
func checkConditional(cfg *Config) error {
	switch cfg.Preferences.Backend {
	case PreferenceBackendPostgres:
		if !cfg.Database.URL.IsSet() {
			return &ConfigError{
				Type:    ErrMissingEnv,
				Message: "DATABASE_URL is required when PREFERENCE_BACKEND=postgres",
			}
		}
	case PreferenceBackendFile:
		if cfg.Preferences.FilePath == "" {
			return &ConfigError{
				Type:    ErrMissingEnv,
				Message: "PREFERENCE_FILE is required when PREFERENCE_BACKEND=file",
			}
		}
	}

	if cfg.Database.MinConns > cfg.Database.MaxConns {
		return &ConfigError{
			Type:    ErrValidation,
			Message: fmt.Sprintf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", cfg.Database.MinConns, cfg.Database.MaxConns),
		}
	}
	return nil
}
