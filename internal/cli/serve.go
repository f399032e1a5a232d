package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/flowgent/flowgent/internal/config"
	"github.com/flowgent/flowgent/internal/database"
	"github.com/flowgent/flowgent/internal/server"
)

var (
	servePort int
	serveHost string
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the Flowgent HTTP server.

The server applies pending migrations, starts the event bus and the
execution reconciler, and serves the webhook, OAuth and API routes.

credentials.encryption_key is required. Generate one with:
  flowgent keygen`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", config.DefaultPort, "Port to listen on")
	serveCmd.Flags().StringVar(&serveHost, "host", config.DefaultHost, "Host to bind to")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}

	if cfg.Credentials.EncryptionKey == "" {
		return errors.New("credentials.encryption_key is required (set FLOWGENT_CREDENTIALS_ENCRYPTION_KEY or run `flowgent keygen`)")
	}
	if err := ensureSecret(&cfg.Auth.Session.Secret, "auth.session.secret"); err != nil {
		return err
	}
	if err := ensureSecret(&cfg.OAuth.StateSecret, "oauth.state_secret"); err != nil {
		return err
	}

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	srv, err := server.New(cfg, db, server.WithVersion(version))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return <-errCh
}

// ensureSecret fills an unset signing secret with a random one. Sessions and
// in-flight OAuth states then do not survive a restart.
func ensureSecret(secret *string, field string) error {
	if *secret != "" {
		return config.ValidateSecret(field, *secret)
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("generating %s: %w", field, err)
	}
	*secret = hex.EncodeToString(buf)

	log.Warn().Str("field", field).Msg("No secret configured, using an ephemeral one")
	return nil
}
