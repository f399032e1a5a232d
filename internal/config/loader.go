package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// envProviders are the providers whose client credentials may be supplied through
// bare environment variables such as SLACK_CLIENT_ID.
var envProviders = []string{"slack", "google", "github", "notion"}

type LoadOptions struct {
	ConfigFile string
	EnvPrefix  string
	Defaults   *Config
}

func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	defaults := opts.Defaults
	if defaults == nil {
		defaults = Default()
	}
	setViperDefaults(v, defaults)

	if opts.EnvPrefix == "" {
		opts.EnvPrefix = "FLOWGENT"
	}
	v.SetEnvPrefix(opts.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindProviderEnv(v, opts.EnvPrefix); err != nil {
		return nil, fmt.Errorf("binding provider env: %w", err)
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("flowgent")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/flowgent")
		v.AddConfigPath("/etc/flowgent")
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	expandEnvInConfig(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func LoadFromFile(path string) (*Config, error) {
	return Load(LoadOptions{ConfigFile: path})
}

func LoadWithDefaults() (*Config, error) {
	return Load(LoadOptions{})
}

func setViperDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.public_url", cfg.Server.PublicURL)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", cfg.Server.IdleTimeout)
	v.SetDefault("server.max_body_size", cfg.Server.MaxBodySize)
	v.SetDefault("server.webhook_rate_limit.max", cfg.Server.WebhookRateLimit.Max)
	v.SetDefault("server.webhook_rate_limit.window", cfg.Server.WebhookRateLimit.Window)
	v.SetDefault("server.trust_proxy_headers", cfg.Server.TrustProxyHeaders)

	v.SetDefault("server.cors.enabled", cfg.Server.CORS.Enabled)
	v.SetDefault("server.cors.allowed_origins", cfg.Server.CORS.AllowedOrigins)
	v.SetDefault("server.cors.exposed_headers", cfg.Server.CORS.ExposedHeaders)
	// CORS methods and headers are hard-coded (see CORSConfig methods)
	v.SetDefault("server.cors.allow_credentials", cfg.Server.CORS.AllowCredentials)
	v.SetDefault("server.cors.max_age", cfg.Server.CORS.MaxAge)

	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("database.wal_mode", cfg.Database.WALMode)
	v.SetDefault("database.cache_size", cfg.Database.CacheSize)
	v.SetDefault("database.busy_timeout", cfg.Database.BusyTimeout)
	v.SetDefault("database.foreign_keys", cfg.Database.ForeignKeys)
	v.SetDefault("database.max_open_conns", cfg.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", cfg.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", cfg.Database.ConnMaxLifetime)

	v.SetDefault("auth.session.secret", cfg.Auth.Session.Secret)
	v.SetDefault("auth.session.issuer", cfg.Auth.Session.Issuer)
	v.SetDefault("auth.session.ttl", cfg.Auth.Session.TTL)
	v.SetDefault("auth.session.cookie_name", cfg.Auth.Session.CookieName)
	v.SetDefault("auth.sign_in_path", cfg.Auth.SignInPath)

	v.SetDefault("oauth.state_secret", cfg.OAuth.StateSecret)
	v.SetDefault("oauth.state_max_age", cfg.OAuth.StateMaxAge)
	v.SetDefault("oauth.credentials_path", cfg.OAuth.CredentialsPath)

	v.SetDefault("credentials.encryption_key", cfg.Credentials.EncryptionKey)

	v.SetDefault("events.process_interval", cfg.Events.ProcessInterval)
	v.SetDefault("events.cleanup_interval", cfg.Events.CleanupInterval)
	v.SetDefault("events.retention", cfg.Events.Retention)

	v.SetDefault("reconciler.enabled", cfg.Reconciler.Enabled)
	v.SetDefault("reconciler.schedule", cfg.Reconciler.Schedule)
	v.SetDefault("reconciler.stale_after", cfg.Reconciler.StaleAfter)
	v.SetDefault("reconciler.batch_size", cfg.Reconciler.BatchSize)

	v.SetDefault("scheduler.enabled", cfg.Scheduler.Enabled)
	v.SetDefault("scheduler.poll_interval", cfg.Scheduler.PollInterval)
	v.SetDefault("scheduler.batch_size", cfg.Scheduler.BatchSize)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.caller", cfg.Logging.Caller)
}

// bindProviderEnv lets each known provider's client credentials come from either
// FLOWGENT_OAUTH_PROVIDERS_<ID>_CLIENT_ID or <ID>_CLIENT_ID.
func bindProviderEnv(v *viper.Viper, prefix string) error {
	for _, id := range envProviders {
		upper := strings.ToUpper(id)
		for _, field := range []string{"client_id", "client_secret"} {
			key := "oauth.providers." + id + "." + field
			scoped := prefix + "_OAUTH_PROVIDERS_" + upper + "_" + strings.ToUpper(field)
			bare := upper + "_" + strings.ToUpper(field)
			if err := v.BindEnv(key, scoped, bare); err != nil {
				return err
			}
		}
	}
	return nil
}

func expandEnvInConfig(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envVar := val[2 : len(val)-1]
			if envVal := os.Getenv(envVar); envVal != "" {
				v.Set(key, envVal)
			}
		}
	}
}

func ConfigFilePath(customPath string) (string, error) {
	if customPath != "" {
		absPath, err := filepath.Abs(customPath)
		if err != nil {
			return "", fmt.Errorf("resolving config path: %w", err)
		}
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", absPath)
		}
		return absPath, nil
	}

	searchPaths := []string{
		"flowgent.yaml",
		"flowgent.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "flowgent", "flowgent.yaml"),
		"/etc/flowgent/flowgent.yaml",
	}

	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			return filepath.Abs(p)
		}
	}

	return "", ErrConfigNotFound
}
