// Package config loads gateway configuration from app.yaml plus environment
// overrides, following the same viper/mapstructure idiom across all fields.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the gateway process.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Identity   IdentityConfig   `mapstructure:"identity"`
	TenantDB   TenantDBConfig   `mapstructure:"tenant_db"`
	Central    CentralConfig    `mapstructure:"central"`
	Email      EmailConfig      `mapstructure:"email"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	DeviceAuth DeviceAuthConfig `mapstructure:"device_auth"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// IdentityConfig configures the C1 identity-provider collaborator.
type IdentityConfig struct {
	URL            string `mapstructure:"url"`             // SUPABASE_URL
	AnonKey        string `mapstructure:"anon_key"`         // SUPABASE_ANON_KEY
	ServiceRoleKey string `mapstructure:"service_role_key"` // SUPABASE_SERVICE_ROLE_KEY
	JWTSecret      string `mapstructure:"jwt_secret"`       // shared HS256 secret for local verification
}

// TenantDBConfig configures connection defaults for per-tenant databases (C3).
type TenantDBConfig struct {
	DefaultPort int           `mapstructure:"default_port"` // CLIENT_DB_DEFAULT_PORT
	PoolSize    int           `mapstructure:"pool_size"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	ReapEvery   time.Duration `mapstructure:"reap_every"`
}

// CentralConfig configures the management database holding the tenant
// directory (C2's db_info table).
type CentralConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

func (c CentralConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// EmailConfig configures the C5 transactional email transport.
type EmailConfig struct {
	APIKey         string `mapstructure:"api_key"`          // RESEND_API_KEY
	From           string `mapstructure:"from"`             // SECURITY_EMAIL_FROM
	ConfirmURLBase string `mapstructure:"confirm_url_base"` // SECURITY_DEVICE_CONFIRM_URL
}

// RateLimitConfig configures C9's default window/quota; per-endpoint
// overrides are applied at route-registration time.
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	DefaultMax    int `mapstructure:"default_max"`
}

type CORSConfig struct {
	AllowedOrigin string `mapstructure:"allowed_origin"` // FUNCTIONS_ALLOWED_ORIGIN
}

type TelemetryConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RetentionDays   int     `mapstructure:"retention_days"`
	SamplingRate    float64 `mapstructure:"sampling_rate"`
	BufferSize      int     `mapstructure:"buffer_size"`
	FlushIntervalMs int     `mapstructure:"flush_interval_ms"`
}

type DeviceAuthConfig struct {
	// LocalBaseURL is the confirmation link base used when
	// SECURITY_DEVICE_CONFIRM_URL is unset. It is read from APP_BASE_URL and
	// defaults to http://localhost:5173. The base is fixed at startup; the
	// incoming request's origin is never consulted.
	LocalBaseURL string `mapstructure:"local_base_url"` // APP_BASE_URL
}

// Load reads app.yaml (if present) plus environment variables into Config.
func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../..")

	viper.SetDefault("server.port", 8080)

	viper.SetDefault("identity.url", "")
	viper.SetDefault("identity.anon_key", "")
	viper.SetDefault("identity.service_role_key", "")
	viper.SetDefault("identity.jwt_secret", "")

	viper.SetDefault("tenant_db.default_port", 5432)
	viper.SetDefault("tenant_db.pool_size", 5)
	viper.SetDefault("tenant_db.idle_timeout", "10m")
	viper.SetDefault("tenant_db.reap_every", "1m")

	viper.SetDefault("central.host", "localhost")
	viper.SetDefault("central.port", 5432)
	viper.SetDefault("central.user", "postgres")
	viper.SetDefault("central.password", "")
	viper.SetDefault("central.name", "postgres")

	viper.SetDefault("email.api_key", "")
	viper.SetDefault("email.from", "")
	viper.SetDefault("email.confirm_url_base", "")

	viper.SetDefault("rate_limit.window_seconds", 60)
	viper.SetDefault("rate_limit.default_max", 60)

	viper.SetDefault("cors.allowed_origin", "*")

	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.retention_days", 7)
	viper.SetDefault("telemetry.sampling_rate", 1.0)
	viper.SetDefault("telemetry.buffer_size", 500)
	viper.SetDefault("telemetry.flush_interval_ms", 250)

	viper.SetDefault("device_auth.local_base_url", "http://localhost:5173")

	// Map the bare env-var names used by the deployed service
	// onto nested keys, so either the config file or the raw env var works.
	_ = viper.BindEnv("identity.url", "SUPABASE_URL")
	_ = viper.BindEnv("identity.anon_key", "SUPABASE_ANON_KEY")
	_ = viper.BindEnv("identity.service_role_key", "SUPABASE_SERVICE_ROLE_KEY")
	_ = viper.BindEnv("tenant_db.default_port", "CLIENT_DB_DEFAULT_PORT")
	_ = viper.BindEnv("cors.allowed_origin", "FUNCTIONS_ALLOWED_ORIGIN")
	_ = viper.BindEnv("email.api_key", "RESEND_API_KEY")
	_ = viper.BindEnv("email.from", "SECURITY_EMAIL_FROM")
	_ = viper.BindEnv("email.confirm_url_base", "SECURITY_DEVICE_CONFIRM_URL")
	_ = viper.BindEnv("device_auth.local_base_url", "APP_BASE_URL")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
