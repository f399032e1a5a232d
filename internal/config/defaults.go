package config

import "time"

// Default configuration values.
const (
	// Server defaults.
	DefaultHost         = "localhost"
	DefaultPort         = 8090
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultIdleTimeout  = 120 * time.Second
	DefaultMaxBodySize  = 10 * 1024 * 1024 // 10MB

	DefaultWebhookRateMax    = 600
	DefaultWebhookRateWindow = time.Minute

	// Database defaults.
	DefaultDBPath       = "flowgent.db"
	DefaultCacheSize    = -64000 // 64MB
	DefaultBusyTimeout  = 5 * time.Second
	DefaultMaxOpenConns = 1 // SQLite works best with single writer
	DefaultMaxIdleConns = 1

	// Auth defaults.
	DefaultSessionTTL    = 7 * 24 * time.Hour
	DefaultSessionIssuer = "flowgent"
	DefaultSessionCookie = "flowgent_session"
	DefaultSignInPath    = "/sign-in"

	// OAuth defaults.
	DefaultStateMaxAge     = 10 * time.Minute
	DefaultCredentialsPath = "/credentials"

	// Event bus defaults.
	DefaultProcessInterval = time.Second
	DefaultCleanupInterval = time.Hour
	DefaultRetention       = 7 * 24 * time.Hour

	// Reconciler defaults.
	DefaultReconcileSchedule  = "@every 1m"
	DefaultReconcileStale     = 2 * time.Minute
	DefaultReconcileBatchSize = 100

	// Scheduler defaults.
	DefaultSchedulerPollInterval = 5 * time.Second
	DefaultSchedulerBatchSize    = 100

	// Logging defaults.
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         DefaultHost,
			Port:         DefaultPort,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			IdleTimeout:  DefaultIdleTimeout,
			MaxBodySize:  DefaultMaxBodySize,
			WebhookRateLimit: RateLimitRule{
				Max:    DefaultWebhookRateMax,
				Window: DefaultWebhookRateWindow,
			},
			CORS: CORSConfig{
				Enabled:          true,
				AllowedOrigins:   []string{"*"},
				ExposedHeaders:   []string{"X-Request-ID"},
				AllowCredentials: false,
				MaxAge:           12 * time.Hour,
			},
		},
		Database: DatabaseConfig{
			Path:         DefaultDBPath,
			WALMode:      true,
			CacheSize:    DefaultCacheSize,
			BusyTimeout:  DefaultBusyTimeout,
			ForeignKeys:  true,
			MaxOpenConns: DefaultMaxOpenConns,
			MaxIdleConns: DefaultMaxIdleConns,
		},
		Auth: AuthConfig{
			Session: SessionConfig{
				Issuer:     DefaultSessionIssuer,
				TTL:        DefaultSessionTTL,
				CookieName: DefaultSessionCookie,
			},
			SignInPath: DefaultSignInPath,
		},
		OAuth: OAuthConfig{
			StateMaxAge:     DefaultStateMaxAge,
			CredentialsPath: DefaultCredentialsPath,
			Providers:       make(map[string]OAuthProviderConfig),
		},
		Events: EventsConfig{
			ProcessInterval: DefaultProcessInterval,
			CleanupInterval: DefaultCleanupInterval,
			Retention:       DefaultRetention,
		},
		Reconciler: ReconcilerConfig{
			Enabled:    true,
			Schedule:   DefaultReconcileSchedule,
			StaleAfter: DefaultReconcileStale,
			BatchSize:  DefaultReconcileBatchSize,
		},
		Scheduler: SchedulerConfig{
			Enabled:      true,
			PollInterval: DefaultSchedulerPollInterval,
			BatchSize:    DefaultSchedulerBatchSize,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
