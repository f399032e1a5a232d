package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/robfig/cron/v3"
)

const minSecretLength = 32

// EncryptionKeySize is the decoded length required of credentials.encryption_key.
const EncryptionKeySize = 32

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		sb.WriteString("  - ")
		sb.WriteString(err.Error())
		sb.WriteString("\n")
	}
	return sb.String()
}

func Validate(cfg *Config) error {
	var errs ValidationErrors

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateDatabase(&cfg.Database)...)
	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateOAuth(&cfg.OAuth)...)
	errs = append(errs, validateCredentials(&cfg.Credentials)...)
	errs = append(errs, validateReconciler(&cfg.Reconciler)...)
	errs = append(errs, validateScheduler(&cfg.Scheduler)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateServer(cfg *ServerConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: "must be between 1 and 65535",
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.read_timeout",
			Message: "must be non-negative",
		})
	}

	if cfg.WriteTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.write_timeout",
			Message: "must be non-negative",
		})
	}

	if cfg.MaxBodySize < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.max_body_size",
			Message: "must be non-negative",
		})
	}

	if cfg.WebhookRateLimit.Max < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.webhook_rate_limit.max",
			Message: "must be non-negative",
		})
	}

	if cfg.WebhookRateLimit.Max > 0 && cfg.WebhookRateLimit.Window < time.Second {
		errs = append(errs, ValidationError{
			Field:   "server.webhook_rate_limit.window",
			Message: "must be at least 1 second",
		})
	}

	if cfg.PublicURL != "" && !strings.HasPrefix(cfg.PublicURL, "http://") && !strings.HasPrefix(cfg.PublicURL, "https://") {
		errs = append(errs, ValidationError{
			Field:   "server.public_url",
			Message: "must start with http:// or https://",
		})
	}

	for _, origin := range cfg.CORS.AllowedOrigins {
		if _, err := glob.Compile(origin); err != nil {
			errs = append(errs, ValidationError{
				Field:   "server.cors.allowed_origins",
				Message: fmt.Sprintf("invalid origin pattern %q: %v", origin, err),
			})
		}
	}

	if cfg.CORS.Enabled && cfg.CORS.AllowCredentials {
		for _, origin := range cfg.CORS.AllowedOrigins {
			if origin == "*" {
				errs = append(errs, ValidationError{
					Field:   "server.cors",
					Message: "security: allow_credentials=true with allowed_origins=[\"*\"] is insecure",
				})
				break
			}
		}
	}

	return errs
}

func validateDatabase(cfg *DatabaseConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "database.path",
			Message: "required",
		})
	}

	return errs
}

func validateAuth(cfg *AuthConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.Session.TTL < time.Minute {
		errs = append(errs, ValidationError{
			Field:   "auth.session.ttl",
			Message: "must be at least 1 minute",
		})
	}

	if cfg.Session.Secret != "" && len(cfg.Session.Secret) < minSecretLength {
		errs = append(errs, ValidationError{
			Field:   "auth.session.secret",
			Message: fmt.Sprintf("must be at least %d characters", minSecretLength),
		})
	}

	if cfg.Session.CookieName == "" {
		errs = append(errs, ValidationError{
			Field:   "auth.session.cookie_name",
			Message: "required",
		})
	}

	if !strings.HasPrefix(cfg.SignInPath, "/") {
		errs = append(errs, ValidationError{
			Field:   "auth.sign_in_path",
			Message: "must start with /",
		})
	}

	return errs
}

func validateOAuth(cfg *OAuthConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.StateSecret != "" && len(cfg.StateSecret) < minSecretLength {
		errs = append(errs, ValidationError{
			Field:   "oauth.state_secret",
			Message: fmt.Sprintf("must be at least %d characters", minSecretLength),
		})
	}

	if cfg.StateMaxAge < time.Minute {
		errs = append(errs, ValidationError{
			Field:   "oauth.state_max_age",
			Message: "must be at least 1 minute",
		})
	}

	if !strings.HasPrefix(cfg.CredentialsPath, "/") {
		errs = append(errs, ValidationError{
			Field:   "oauth.credentials_path",
			Message: "must start with /",
		})
	}

	for name, provider := range cfg.Providers {
		// Entirely unconfigured providers are simply unavailable.
		if provider.ClientID == "" && provider.ClientSecret == "" {
			continue
		}
		if provider.ClientID == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("oauth.providers.%s.client_id", name),
				Message: "required when client_secret is set",
			})
		}
		if provider.ClientSecret == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("oauth.providers.%s.client_secret", name),
				Message: "required when client_id is set",
			})
		}
	}

	return errs
}

func validateCredentials(cfg *CredentialsConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.EncryptionKey == "" {
		return errs
	}

	key, err := base64.StdEncoding.DecodeString(cfg.EncryptionKey)
	if err != nil {
		errs = append(errs, ValidationError{
			Field:   "credentials.encryption_key",
			Message: "must be base64 encoded",
		})
		return errs
	}

	if len(key) != EncryptionKeySize {
		errs = append(errs, ValidationError{
			Field:   "credentials.encryption_key",
			Message: fmt.Sprintf("must decode to %d bytes, got %d", EncryptionKeySize, len(key)),
		})
	}

	return errs
}

func validateReconciler(cfg *ReconcilerConfig) ValidationErrors {
	var errs ValidationErrors

	if !cfg.Enabled {
		return errs
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(cfg.Schedule); err != nil {
		errs = append(errs, ValidationError{
			Field:   "reconciler.schedule",
			Message: fmt.Sprintf("invalid schedule: %v", err),
		})
	}

	if cfg.StaleAfter < time.Second {
		errs = append(errs, ValidationError{
			Field:   "reconciler.stale_after",
			Message: "must be at least 1 second",
		})
	}

	if cfg.BatchSize < 1 {
		errs = append(errs, ValidationError{
			Field:   "reconciler.batch_size",
			Message: "must be at least 1",
		})
	}

	return errs
}

func validateScheduler(cfg *SchedulerConfig) ValidationErrors {
	var errs ValidationErrors

	if !cfg.Enabled {
		return errs
	}

	if cfg.PollInterval < time.Second {
		errs = append(errs, ValidationError{
			Field:   "scheduler.poll_interval",
			Message: "must be at least 1 second",
		})
	}

	if cfg.BatchSize < 1 {
		errs = append(errs, ValidationError{
			Field:   "scheduler.batch_size",
			Message: "must be at least 1",
		})
	}

	return errs
}

func validateLogging(cfg *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[cfg.Level] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: "must be one of: trace, debug, info, warn, error, fatal, panic",
		})
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Format] {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: "must be 'json' or 'console'",
		})
	}

	return errs
}

// ValidateSecret checks a signing secret before the server starts.
func ValidateSecret(field, secret string) error {
	if secret == "" {
		return &ValidationError{
			Field:   field,
			Message: "required for production use",
		}
	}
	if len(secret) < minSecretLength {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be at least %d characters", minSecretLength),
		}
	}
	return nil
}
