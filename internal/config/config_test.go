package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func hasFieldError(err error, field string) bool {
	errs, ok := err.(ValidationErrors)
	if !ok {
		return false
	}
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != DefaultPort {
		t.Errorf("expected port %d, got %d", DefaultPort, cfg.Server.Port)
	}

	if cfg.Database.Path != DefaultDBPath {
		t.Errorf("expected db path %s, got %s", DefaultDBPath, cfg.Database.Path)
	}

	if cfg.OAuth.StateMaxAge != DefaultStateMaxAge {
		t.Errorf("expected state max age %v, got %v", DefaultStateMaxAge, cfg.OAuth.StateMaxAge)
	}

	if cfg.OAuth.CredentialsPath != "/credentials" {
		t.Errorf("expected credentials path /credentials, got %s", cfg.OAuth.CredentialsPath)
	}

	if !cfg.Reconciler.Enabled {
		t.Error("expected reconciler to be enabled by default")
	}

	if cfg.Server.TrustProxyHeaders {
		t.Error("expected proxy headers to be untrusted by default")
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for invalid port")
	}

	if _, ok := err.(ValidationErrors); !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	if !hasFieldError(err, "server.port") {
		t.Error("expected error for server.port field")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "invalid"

	if err := Validate(cfg); !hasFieldError(err, "logging.level") {
		t.Errorf("expected logging.level error, got %v", err)
	}
}

func TestValidate_CORSCredentialsWithWildcard(t *testing.T) {
	cfg := Default()
	cfg.Server.CORS.AllowCredentials = true

	if err := Validate(cfg); !hasFieldError(err, "server.cors") {
		t.Errorf("expected server.cors error, got %v", err)
	}
}

func TestValidate_PublicURL(t *testing.T) {
	cfg := Default()
	cfg.Server.PublicURL = "app.flowgent.io"

	if err := Validate(cfg); !hasFieldError(err, "server.public_url") {
		t.Errorf("expected server.public_url error, got %v", err)
	}

	cfg.Server.PublicURL = "https://app.flowgent.io"
	if err := Validate(cfg); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestValidate_WebhookRateLimit(t *testing.T) {
	cfg := Default()
	cfg.Server.WebhookRateLimit.Window = 0

	if err := Validate(cfg); !hasFieldError(err, "server.webhook_rate_limit.window") {
		t.Errorf("expected server.webhook_rate_limit.window error, got %v", err)
	}

	cfg.Server.WebhookRateLimit.Max = 0
	if err := Validate(cfg); err != nil {
		t.Errorf("disabled limiter should not need a window, got %v", err)
	}
}

func TestValidate_OAuthProvider(t *testing.T) {
	cfg := Default()
	cfg.OAuth.Providers["github"] = OAuthProviderConfig{
		ClientID:     "",
		ClientSecret: "secret",
	}

	if err := Validate(cfg); !hasFieldError(err, "oauth.providers.github.client_id") {
		t.Errorf("expected missing client_id error, got %v", err)
	}
}

func TestValidate_UnconfiguredProviderIgnored(t *testing.T) {
	cfg := Default()
	cfg.OAuth.Providers["notion"] = OAuthProviderConfig{}

	if err := Validate(cfg); err != nil {
		t.Errorf("expected empty provider entry to be ignored, got %v", err)
	}
}

func TestValidate_StateSecretTooShort(t *testing.T) {
	cfg := Default()
	cfg.OAuth.StateSecret = "short"

	if err := Validate(cfg); !hasFieldError(err, "oauth.state_secret") {
		t.Errorf("expected oauth.state_secret error, got %v", err)
	}
}

func TestValidate_EncryptionKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"unset", "", false},
		{"not base64", "!!!not-base64!!!", true},
		{"wrong length", base64.StdEncoding.EncodeToString([]byte("sixteen-byte-key")), true},
		{"valid", base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", EncryptionKeySize))), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Credentials.EncryptionKey = tt.key
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReconcilerSchedule(t *testing.T) {
	cfg := Default()
	cfg.Reconciler.Schedule = "every so often"

	if err := Validate(cfg); !hasFieldError(err, "reconciler.schedule") {
		t.Errorf("expected reconciler.schedule error, got %v", err)
	}

	cfg.Reconciler.Enabled = false
	if err := Validate(cfg); err != nil {
		t.Errorf("disabled reconciler should not be validated, got %v", err)
	}
}

func TestValidate_Scheduler(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.PollInterval = 100 * time.Millisecond

	if err := Validate(cfg); !hasFieldError(err, "scheduler.poll_interval") {
		t.Errorf("expected scheduler.poll_interval error, got %v", err)
	}

	cfg.Scheduler.Enabled = false
	if err := Validate(cfg); err != nil {
		t.Errorf("disabled scheduler should not be validated, got %v", err)
	}
}

func TestValidateSecret(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		wantErr bool
	}{
		{"empty", "", true},
		{"too short", "short", true},
		{"valid", "this-is-a-very-long-secret-key-for-state-signing", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSecret("oauth.state_secret", tt.secret)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSecret() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "flowgent.yaml")

	content := `
server:
  port: 9000
  host: "0.0.0.0"
database:
  path: "test.db"
logging:
  level: "debug"
oauth:
  state_max_age: 5m
  providers:
    slack:
      client_id: "slack-id"
      client_secret: "slack-secret"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected host 0.0.0.0, got %s", cfg.Server.Host)
	}

	if cfg.Database.Path != "test.db" {
		t.Errorf("expected db path test.db, got %s", cfg.Database.Path)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}

	if cfg.OAuth.StateMaxAge != 5*time.Minute {
		t.Errorf("expected state max age 5m, got %v", cfg.OAuth.StateMaxAge)
	}

	if got := cfg.OAuth.Providers["slack"].ClientID; got != "slack-id" {
		t.Errorf("expected slack client id slack-id, got %q", got)
	}
}

func TestLoadWithEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FLOWGENT_SERVER_PORT", "7777")
	t.Setenv("FLOWGENT_DATABASE_PATH", "env-test.db")
	t.Setenv("FLOWGENT_SERVER_TRUST_PROXY_HEADERS", "true")

	cfg, err := LoadWithDefaults()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if !cfg.Server.TrustProxyHeaders {
		t.Error("expected trust_proxy_headers from env")
	}

	if cfg.Server.Port != 7777 {
		t.Errorf("expected port 7777 from env, got %d", cfg.Server.Port)
	}

	if cfg.Database.Path != "env-test.db" {
		t.Errorf("expected db path env-test.db from env, got %s", cfg.Database.Path)
	}
}

func TestLoadProviderCredentialsFromBareEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GITHUB_CLIENT_ID", "gh-id")
	t.Setenv("GITHUB_CLIENT_SECRET", "gh-secret")

	cfg, err := LoadWithDefaults()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	gh := cfg.OAuth.Providers["github"]
	if gh.ClientID != "gh-id" || gh.ClientSecret != "gh-secret" {
		t.Errorf("expected github credentials from env, got %+v", gh)
	}
}

func TestServerAddress(t *testing.T) {
	cfg := &ServerConfig{Host: "localhost", Port: 8090}
	if addr := cfg.Address(); addr != "localhost:8090" {
		t.Errorf("expected localhost:8090, got %s", addr)
	}
}
