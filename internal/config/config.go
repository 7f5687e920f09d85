// Package config defines the configuration structure for skyview.
// Configuration is loaded once at process start and is immutable thereafter.
//
// Values are resolved from the OS environment first and a .env file second.
// An invalid format or a failed validation rule aborts startup.
package config

import (
	"time"

	"skyview/internal/types"
)

// SecretString is an alias for types.SecretString so config consumers do not
// need to import the types package for redacted keys.
type SecretString = types.SecretString

// Preference backends.
const (
	PreferenceBackendFile     = "file"
	PreferenceBackendMemory   = "memory"
	PreferenceBackendPostgres = "postgres"
)

// Config is the top-level configuration struct.
// Sub-components receive only the config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"skyview"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// Domain Configurations
	Server        ServerConfig
	Weather       WeatherConfig
	Imagery       ImageryConfig
	Upstream      UpstreamConfig
	Preferences   PreferenceConfig
	Session       SessionConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"25s" validate:"gt=0"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// WeatherConfig holds the current-weather provider (OpenWeatherMap) settings.
// A missing API key is not a startup error; every weather request will fail.
type WeatherConfig struct {
	APIKey      SecretString `envconfig:"OPEN_WEATHER_API_KEY"`
	BaseURL     string       `envconfig:"OPEN_WEATHER_BASE_URL" default:"https://api.openweathermap.org/data/2.5/weather" validate:"required,url"`
	IconBaseURL string       `envconfig:"OPEN_WEATHER_ICON_BASE_URL" default:"https://openweathermap.org/img/wn" validate:"required,url"`
}

// ImageryConfig holds the image search provider (Unsplash) settings.
// A missing access key is not a startup error; every image search will fail.
type ImageryConfig struct {
	AccessKey   SecretString `envconfig:"UNSPLASH_ACCESS_KEY"`
	BaseURL     string       `envconfig:"UNSPLASH_BASE_URL" default:"https://api.unsplash.com/search/photos" validate:"required,url"`
	PageSize    int          `envconfig:"IMAGE_PAGE_SIZE" default:"30" validate:"min=1,max=50"`
	Orientation string       `envconfig:"IMAGE_ORIENTATION" default:"landscape" validate:"oneof=landscape portrait squarish"`
}

// UpstreamConfig holds settings shared by both provider clients.
type UpstreamConfig struct {
	UserAgent string        `envconfig:"UPSTREAM_USER_AGENT" default:"Skyview/1.0"`
	Timeout   time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"10s" validate:"gt=0"`
}

// PreferenceConfig selects where the language preference is persisted.
type PreferenceConfig struct {
	Backend  string `envconfig:"PREFERENCE_BACKEND" default:"file" validate:"oneof=file memory postgres"`
	FilePath string `envconfig:"PREFERENCE_FILE" default:".skyview/preferences.json"`
	Key      string `envconfig:"PREFERENCE_KEY" default:"preferredLanguage" validate:"required"`
}

// SessionConfig holds per-client session settings for the API server.
type SessionConfig struct {
	CookieName string        `envconfig:"SESSION_COOKIE_NAME" default:"skyview_client" validate:"required"`
	IdleTTL    time.Duration `envconfig:"SESSION_IDLE_TTL" default:"30m" validate:"gt=0"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
// Only consulted when PreferenceConfig.Backend is "postgres".
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL"`

	// Tuning Parameters
	MaxConns          int32         `envconfig:"DB_MAX_CONNS" default:"5"`
	MinConns          int32         `envconfig:"DB_MIN_CONNS" default:"0"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds regional configuration for the CloudWatch metrics client.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricsEnabled  bool   `envconfig:"METRICS_ENABLED" default:"false"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Skyview"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a conditionally required variable was not set.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates an environment value could not be parsed into its
	// target type.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)

// MissingKeys lists the provider credentials that are not configured.
// Startup proceeds without them; callers log the result as a warning.
func (c *Config) MissingKeys() []string {
	var missing []string
	if !c.Weather.APIKey.IsSet() {
		missing = append(missing, "OPEN_WEATHER_API_KEY")
	}
	if !c.Imagery.AccessKey.IsSet() {
		missing = append(missing, "UNSPLASH_ACCESS_KEY")
	}
	return missing
}
