// Package config loads process-level configuration from the environment,
// the way wisbric-nightowl/internal/config does for its own process.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds every process-wide setting the composition root needs to
// wire up the execution core (spec.md §6.6).
type Config struct {
	// AppEnv selects the runtime environment: "development", "staging",
	// or "production". IsProduction reports on it; log formatting is
	// chosen by LogFormat alone.
	AppEnv string `env:"APP_ENV" envDefault:"development"`

	// Host/Port the inbound HTTP surface binds to.
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port int    `env:"PORT" envDefault:"8080"`

	// BaseURL is this service's own externally reachable URL, used to
	// build OAuth redirect_uri values during the authorize/callback flow.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// ServerPublicURL overrides BaseURL for links returned to clients
	// when the service sits behind a reverse proxy with a different
	// public hostname.
	ServerPublicURL string `env:"SERVER_PUBLIC_URL"`

	// EnableInlineWorker is loaded from ENABLE_INLINE_WORKER; no component
	// in this module reads it, and no background worker loop exists here.
	EnableInlineWorker bool `env:"ENABLE_INLINE_WORKER" envDefault:"true"`

	// Retry/backoff defaults (spec.md §4.4). They are loaded only: the
	// retry engine takes its policy from its caller and does not read them.
	DefaultMaxRetries    int   `env:"DEFAULT_MAX_RETRIES" envDefault:"4"`
	DefaultBaseBackoffMs int64 `env:"DEFAULT_BASE_BACKOFF_MS" envDefault:"500"`
	DefaultMaxBackoffMs  int64 `env:"DEFAULT_MAX_BACKOFF_MS" envDefault:"30000"`

	// Allowlist defaults (spec.md §4.0). They are loaded only: connections
	// without their own organization network policy are not given them,
	// and the pipeline admits every host when its policy is empty.
	AllowlistDefaultMode  string   `env:"ALLOWLIST_DEFAULT_MODE" envDefault:"allow_all"`
	AllowlistDefaultHosts []string `env:"ALLOWLIST_DEFAULT_HOSTS" envSeparator:","`

	// JWT/RBAC settings (spec.md §6.3): the HS256 signing secret the
	// guard verifies bearer tokens against.
	JWTSigningSecret string `env:"JWT_SIGNING_SECRET"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Dynamic-options cache (pkg/dynamicoptions), Redis opt-in.
	DynamicOptionsRedisURL   string `env:"DYNAMIC_OPTIONS_REDIS_URL"`
	DynamicOptionsDefaultTTL int64  `env:"DYNAMIC_OPTIONS_DEFAULT_TTL_MS" envDefault:"60000"`

	// GitHub OAuth app credentials, opt-in: when both are set, the
	// composition root wires a real pkg/oauthflow.Exchanger for the
	// "github" provider instead of leaving /api/oauth/* unconfigured.
	GitHubOAuthClientID     string `env:"GITHUB_OAUTH_CLIENT_ID"`
	GitHubOAuthClientSecret string `env:"GITHUB_OAUTH_CLIENT_SECRET"`
}

// Load reads Config from the environment, applying envDefault tags for
// anything unset.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config from env: %w", err)
	}
	return cfg, nil
}

// ListenAddr returns the address the HTTP server should bind to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PublicURL returns ServerPublicURL if set, else BaseURL.
func (c *Config) PublicURL() string {
	if c.ServerPublicURL != "" {
		return c.ServerPublicURL
	}
	return c.BaseURL
}

// IsProduction reports whether AppEnv names a production-like environment.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
