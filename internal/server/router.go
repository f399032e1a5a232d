package server

import (
	"net/http"

	"github.com/flowgent/flowgent/internal/auth"
	"github.com/flowgent/flowgent/internal/metrics"
	"github.com/flowgent/flowgent/internal/server/handlers"
	"github.com/flowgent/flowgent/internal/webhooks"
)

type Router struct {
	server      *Server
	mux         *http.ServeMux
	middlewares []Middleware
	handler     http.Handler
}

type Middleware func(http.Handler) http.Handler

func NewRouter(srv *Server) *Router {
	r := &Router{
		server: srv,
		mux:    http.NewServeMux(),
	}

	r.setupMiddleware()
	r.setupRoutes()
	r.handler = r.chain()

	return r
}

func (r *Router) setupMiddleware() {
	cfg := r.server.cfg

	r.Use(RecoveryMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	if cfg.Server.CORS.Enabled {
		r.Use(CORSMiddleware(cfg.Server.CORS))
	}
	if cfg.Server.MaxBodySize > 0 {
		r.Use(MaxBodySizeMiddleware(cfg.Server.MaxBodySize))
	}

	r.Use(auth.Middleware(r.server.sessions, cfg.Auth.Session.CookieName))
	r.Use(MetricsMiddleware)
}

func (r *Router) Use(mw Middleware) {
	r.middlewares = append(r.middlewares, mw)
}

func (r *Router) setupRoutes() {
	s := r.server

	health := handlers.NewHealthHandlers(s.db, s.version)
	r.mux.HandleFunc("GET /health", health.Health)
	r.mux.HandleFunc("GET /health/live", health.Liveness)
	r.mux.Handle("GET /metrics", metrics.Handler())

	integrationHandlers := handlers.NewIntegrationHandlers(s.registry, s.oauth)
	r.mux.HandleFunc("GET /api/integrations", integrationHandlers.List)

	oauthHandlers := handlers.NewOAuthHandlers(handlers.OAuthConfig{
		Registry:        s.registry,
		Manager:         s.oauth,
		States:          s.states,
		Credentials:     s.credentials,
		PublicURL:       s.cfg.Server.PublicURL,
		SignInPath:      s.cfg.Auth.SignInPath,
		CredentialsPath: s.cfg.OAuth.CredentialsPath,
	})
	r.mux.HandleFunc("GET /api/oauth/{provider}/connect", oauthHandlers.Connect)
	r.mux.HandleFunc("GET /api/oauth/{provider}/callback", oauthHandlers.Callback)

	credentialHandlers := handlers.NewCredentialHandlers(s.credentials)
	r.mux.Handle("GET /api/credentials", auth.RequireSession(http.HandlerFunc(credentialHandlers.List)))

	executionHandlers := handlers.NewExecutionHandlers(s.workflows, s.dispatcher)
	r.mux.Handle("POST /api/workflows/{id}/execute", auth.RequireSession(http.HandlerFunc(executionHandlers.Execute)))
	r.mux.Handle("GET /api/workflows/{id}/executions", auth.RequireSession(http.HandlerFunc(executionHandlers.List)))

	ingester := webhooks.NewIngester(s.webhooks, s.workflows, s.dispatcher, s.cfg.Server.MaxBodySize)
	var webhookMiddleware []func(http.Handler) http.Handler
	if s.limiter != nil {
		webhookMiddleware = append(webhookMiddleware, s.limiter.Middleware)
	}
	webhooks.NewHandler(ingester).RegisterRoutes(r.mux, "/api/webhooks", webhookMiddleware...)
}

func (r *Router) chain() http.Handler {
	handler := http.Handler(r.mux)
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		handler = r.middlewares[i](handler)
	}
	return handler
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}
