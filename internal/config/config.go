// Package config provides configuration management for Flowgent.
package config

import (
	"strconv"
	"time"
)

// Config is the root configuration structure for Flowgent.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Auth        AuthConfig        `mapstructure:"auth"`
	OAuth       OAuthConfig       `mapstructure:"oauth"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Events      EventsConfig      `mapstructure:"events"`
	Reconciler  ReconcilerConfig  `mapstructure:"reconciler"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host to bind the server to
	Host string `mapstructure:"host"`

	// Port to listen on
	Port int `mapstructure:"port"`

	// Public origin used to build OAuth redirect URIs (e.g. https://app.flowgent.io).
	// Empty means derive it from the incoming request.
	PublicURL string `mapstructure:"public_url"`

	CORS CORSConfig `mapstructure:"cors"`

	// Request timeouts
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`

	// Maximum request body size in bytes
	MaxBodySize int64 `mapstructure:"max_body_size"`

	// Per client and path limit on /api/webhooks. Max 0 disables it.
	WebhookRateLimit RateLimitRule `mapstructure:"webhook_rate_limit"`

	// Key rate limits on X-Real-IP / X-Forwarded-For. Enable only behind a
	// proxy that sets them.
	TrustProxyHeaders bool `mapstructure:"trust_proxy_headers"`
}

// RateLimitRule allows Max requests per Window.
type RateLimitRule struct {
	Max    int           `mapstructure:"max"`
	Window time.Duration `mapstructure:"window"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Allowed origins. Glob patterns such as "https://*.flowgent.io" are accepted.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	ExposedHeaders []string `mapstructure:"exposed_headers"`

	AllowCredentials bool `mapstructure:"allow_credentials"`

	// Max age for preflight cache
	MaxAge time.Duration `mapstructure:"max_age"`
}

// AllowedMethods returns the HTTP methods allowed for cross-origin requests.
func (c CORSConfig) AllowedMethods() []string {
	return []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
}

// AllowedHeaders returns the request headers allowed for cross-origin requests.
func (c CORSConfig) AllowedHeaders() []string {
	return []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"}
}

// DatabaseConfig holds database settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string `mapstructure:"path"`

	// Enable WAL mode (recommended)
	WALMode bool `mapstructure:"wal_mode"`

	// Cache size in KB (negative for KB, positive for pages)
	CacheSize int `mapstructure:"cache_size"`

	BusyTimeout time.Duration `mapstructure:"busy_timeout"`

	ForeignKeys bool `mapstructure:"foreign_keys"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// AuthConfig holds browser session settings.
type AuthConfig struct {
	Session SessionConfig `mapstructure:"session"`

	// Where unauthenticated browser navigations are sent
	SignInPath string `mapstructure:"sign_in_path"`
}

// SessionConfig holds session token settings.
type SessionConfig struct {
	// Secret key for signing session tokens (min 32 chars)
	Secret string `mapstructure:"secret"`

	Issuer string `mapstructure:"issuer"`

	TTL time.Duration `mapstructure:"ttl"`

	// Cookie carrying the session token
	CookieName string `mapstructure:"cookie_name"`
}

// OAuthConfig holds settings for connecting third-party credentials.
type OAuthConfig struct {
	// Secret used to sign the state parameter (min 32 chars)
	StateSecret string `mapstructure:"state_secret"`

	// Maximum age of a state parameter accepted by the callback
	StateMaxAge time.Duration `mapstructure:"state_max_age"`

	// Page the callback redirects to with success/error query parameters
	CredentialsPath string `mapstructure:"credentials_path"`

	Providers map[string]OAuthProviderConfig `mapstructure:"providers"`
}

// OAuthProviderConfig holds OAuth provider settings.
type OAuthProviderConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`

	// Overrides the registry scopes when set
	Scopes []string `mapstructure:"scopes"`

	// Overrides the provider's authorization endpoint
	AuthURL string `mapstructure:"auth_url"`

	// Overrides the provider's token endpoint
	TokenURL string `mapstructure:"token_url"`
}

// CredentialsConfig holds settings for credential storage.
type CredentialsConfig struct {
	// Base64-encoded 32-byte key used to encrypt secrets at rest
	EncryptionKey string `mapstructure:"encryption_key"`
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	ProcessInterval time.Duration `mapstructure:"process_interval"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	Retention       time.Duration `mapstructure:"retention"`
}

// ReconcilerConfig holds settings for requeueing undispatched executions.
type ReconcilerConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Cron expression or descriptor (e.g. "@every 1m")
	Schedule string `mapstructure:"schedule"`

	// Executions left undispatched longer than this are republished
	StaleAfter time.Duration `mapstructure:"stale_after"`

	BatchSize int `mapstructure:"batch_size"`
}

// SchedulerConfig holds settings for firing workflow schedule triggers.
type SchedulerConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// How often due triggers are looked up
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// Maximum triggers fired per poll
	BatchSize int `mapstructure:"batch_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `mapstructure:"level"`

	// Log format (json, console)
	Format string `mapstructure:"format"`

	// Include caller info
	Caller bool `mapstructure:"caller"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}
