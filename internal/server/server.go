// Package server wires Flowgent's stores and services behind its HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/flowgent/flowgent/internal/auth"
	"github.com/flowgent/flowgent/internal/config"
	"github.com/flowgent/flowgent/internal/credentials"
	"github.com/flowgent/flowgent/internal/database"
	"github.com/flowgent/flowgent/internal/events"
	"github.com/flowgent/flowgent/internal/executions"
	"github.com/flowgent/flowgent/internal/integrations"
	"github.com/flowgent/flowgent/internal/oauth"
	"github.com/flowgent/flowgent/internal/scheduler"
	"github.com/flowgent/flowgent/internal/webhooks"
	"github.com/flowgent/flowgent/internal/workflows"
)

type Server struct {
	cfg         *config.Config
	db          *database.DB
	version     string
	registry    *integrations.Registry
	oauth       *oauth.Manager
	states      *oauth.StateCodec
	sessions    *auth.SessionService
	credentials *credentials.Store
	workflows   *workflows.Store
	webhooks    *webhooks.Store
	bus         *events.EventBus
	dispatcher  *executions.Dispatcher
	reconciler  *executions.Reconciler
	schedules   *scheduler.Store
	scheduler   *scheduler.Scheduler
	limiter     *RateLimiter
	httpServer  *http.Server
	router      *Router

	oauthOpts []oauth.Option
	cancel    context.CancelFunc
}

type Option func(*Server)

func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithOAuthHTTPClient sets the client used for token exchanges.
func WithOAuthHTTPClient(client *http.Client) Option {
	return func(s *Server) {
		s.oauthOpts = append(s.oauthOpts, oauth.WithHTTPClient(client))
	}
}

// New builds a server from cfg. Secrets must already be resolved:
// oauth.state_secret, auth.session.secret and credentials.encryption_key are
// all required here.
func New(cfg *config.Config, db *database.DB, opts ...Option) (*Server, error) {
	srv := &Server{
		cfg:     cfg,
		db:      db,
		version: "dev",
	}

	for _, opt := range opts {
		opt(srv)
	}

	if err := config.ValidateSecret("auth.session.secret", cfg.Auth.Session.Secret); err != nil {
		return nil, err
	}

	key, err := credentials.ParseKey(cfg.Credentials.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("credentials.encryption_key: %w", err)
	}
	sealer, err := credentials.NewSealer(key)
	if err != nil {
		return nil, err
	}

	states, err := oauth.NewStateCodec([]byte(cfg.OAuth.StateSecret), cfg.OAuth.StateMaxAge)
	if err != nil {
		return nil, fmt.Errorf("oauth.state_secret: %w", err)
	}

	srv.registry = integrations.Default()
	srv.oauth = oauth.NewManager(srv.registry, cfg.OAuth.Providers, srv.oauthOpts...)
	srv.states = states
	srv.sessions = auth.NewSessionService(cfg.Auth.Session)
	srv.credentials = credentials.NewStore(db, sealer)
	srv.workflows = workflows.NewStore(db)
	srv.webhooks = webhooks.NewStore(db, sealer)

	srv.bus = events.NewEventBus(db, events.Config{
		ProcessInterval: cfg.Events.ProcessInterval,
		CleanupInterval: cfg.Events.CleanupInterval,
		Retention:       cfg.Events.Retention,
	})
	srv.dispatcher = executions.NewDispatcher(executions.NewStore(db), srv.bus)

	if err := executions.NewStubEngine(srv.dispatcher.Store()).Register(srv.bus); err != nil {
		return nil, fmt.Errorf("registering execution engine: %w", err)
	}

	if cfg.Reconciler.Enabled {
		srv.reconciler = executions.NewReconciler(srv.dispatcher, cfg.Reconciler.StaleAfter, cfg.Reconciler.BatchSize)
	}

	srv.schedules = scheduler.NewStore(db)
	if cfg.Scheduler.Enabled {
		srv.scheduler = scheduler.NewScheduler(srv.schedules, srv.dispatcher, cfg.Scheduler)
	}

	if cfg.Server.WebhookRateLimit.Max > 0 {
		srv.limiter = NewRateLimiter(cfg.Server.WebhookRateLimit, cfg.Server.TrustProxyHeaders)
	}

	srv.router = NewRouter(srv)
	srv.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      srv.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return srv, nil
}

// Start runs the background workers and serves HTTP until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	s.bus.Start(ctx)

	if s.reconciler != nil {
		if err := s.reconciler.Start(ctx, s.cfg.Reconciler.Schedule); err != nil {
			return fmt.Errorf("starting reconciler: %w", err)
		}
	}

	if s.scheduler != nil {
		s.scheduler.Start(ctx)
	}

	log.Info().
		Str("addr", s.cfg.Server.Address()).
		Strs("oauth_providers", s.oauth.Providers()).
		Msg("Starting server")

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down server")

	err := s.httpServer.Shutdown(ctx)

	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.reconciler != nil {
		s.reconciler.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.bus.Stop()
	if s.limiter != nil {
		s.limiter.Stop()
	}

	return err
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Sessions() *auth.SessionService {
	return s.sessions
}

func (s *Server) Bus() *events.EventBus {
	return s.bus
}

func (s *Server) Dispatcher() *executions.Dispatcher {
	return s.dispatcher
}
