// Command execbridge is the composition root: it loads configuration,
// wires the process-wide singletons (rate governor, token refresh
// manager, audit sink, metrics sink, connector registry, facade), and
// serves the inbound HTTP surface. Every singleton is constructed here and
// passed down explicitly, rather than held as package-level globals, per
// the redesign decision recorded in DESIGN.md.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"

	"github.com/resilientcore/execbridge/pkg/adapters/github"
	"github.com/resilientcore/execbridge/pkg/audit"
	"github.com/resilientcore/execbridge/pkg/config"
	"github.com/resilientcore/execbridge/pkg/connector"
	"github.com/resilientcore/execbridge/pkg/credentials"
	"github.com/resilientcore/execbridge/pkg/dynamicoptions"
	"github.com/resilientcore/execbridge/pkg/facade"
	"github.com/resilientcore/execbridge/pkg/httpapi"
	"github.com/resilientcore/execbridge/pkg/metadata"
	"github.com/resilientcore/execbridge/pkg/metrics"
	"github.com/resilientcore/execbridge/pkg/oauthflow"
	"github.com/resilientcore/execbridge/pkg/pipeline"
	"github.com/resilientcore/execbridge/pkg/ratelimit"
	"github.com/resilientcore/execbridge/pkg/rbac"
	"github.com/resilientcore/execbridge/pkg/registry"
	"github.com/resilientcore/execbridge/pkg/tokenrefresh"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := newLogger(cfg)
	log.Info().Str("appEnv", cfg.AppEnv).Msg("starting execbridge")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	srv := build(cfg, log)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr(),
		Handler: srv.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error during HTTP server shutdown")
		}
	}()

	log.Info().Str("addr", cfg.ListenAddr()).Msg("listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("http server failed")
		os.Exit(1)
	}
	log.Info().Msg("execbridge stopped gracefully")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var w = os.Stdout
	if cfg.LogFormat == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: w}).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// build wires one process's singletons: a shared governor, token-refresh
// manager, audit sink, and metrics sink, plus a demo GitHub connection so
// the capabilities/metadata routes have something concrete to return. A
// real deployment replaces demoConnections with its own connection store.
func build(cfg *config.Config, log zerolog.Logger) *httpapi.Server {
	return buildWithMetrics(cfg, log, metrics.NewPrometheus())
}

// buildWithMetrics is build's testable core: tests inject metrics.NoopSink{}
// to avoid registering Prometheus collectors more than once per test
// binary (promauto panics on duplicate registration against the default
// registerer).
func buildWithMetrics(cfg *config.Config, log zerolog.Logger, metricsSink metrics.Sink) *httpapi.Server {
	governor := ratelimit.New(log)
	refreshMgr := tokenrefresh.New(nil)
	auditSink := audit.NewMemorySink(log, 1000)

	connectors := connector.NewRegistry()
	connectors.Register(&connector.Entry{
		ID:             "github",
		DisplayName:    "GitHub",
		Category:       "developer_tools",
		Availability:   connector.AvailabilityGA,
		Authentication: connector.Authentication{Scheme: "oauth2", Scopes: []string{"repo"}},
		RateLimitRules: github.RateLimitRules,
	})

	demoCreds := credentials.New(map[string]string{}, nil)
	demoPipeline := pipeline.New(pipeline.Config{
		BaseURL:        github.BaseURL,
		Governor:       governor,
		RateLimitRules: github.RateLimitRules,
		Identity:       ratelimit.Identity{ConnectorID: "github", ConnectionID: "demo"},
		TokenRefresh:   refreshMgr,
		Credentials:    demoCreds,
		AuthHeaders:    github.AuthHeaders,
		AuditSink:      auditSink,
		Logger:         log,
		Middlewares: []pipeline.ResponseMiddleware{
			func(rc *pipeline.ResponseContext) {
				metricsSink.ObserveRequest(rc.ConnectorID, rc.StatusCode, rc.StatusCode == 0 || rc.StatusCode == 429 || rc.StatusCode >= 500)
			},
		},
	})
	demoHandlers := registry.New()
	github.RegisterHandlers(demoPipeline, demoHandlers)

	demoConnections := map[string]*facade.Connection{
		"demo": {
			ConnectorID:  "github",
			ConnectionID: "demo",
			Credentials:  demoCreds,
			Handlers:     demoHandlers,
			Pipeline:     demoPipeline,
		},
	}

	metadataResolver := metadata.NewResolver()
	metadataResolver.Register("google-sheets", metadata.GoogleSheetsResolver{})

	optionsLookup := connector.DynamicOptionsLookup{
		Connectors: connectors,
		HandlerFor: func(connectorID, handlerID string) (dynamicoptions.Handler, bool) { return nil, false },
	}

	var dynamicOptionsSvc *dynamicoptions.Service
	var readyCheck func() error
	if cfg.DynamicOptionsRedisURL != "" {
		redisCache, err := dynamicoptions.NewRedisCache(cfg.DynamicOptionsRedisURL)
		if err != nil {
			log.Error().Err(err).Msg("invalid DYNAMIC_OPTIONS_REDIS_URL; falling back to in-memory cache")
			dynamicOptionsSvc = dynamicoptions.New(optionsLookup)
		} else {
			dynamicOptionsSvc = dynamicoptions.NewWithCache(optionsLookup, redisCache)
			readyCheck = func() error {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				return redisCache.Ping(ctx)
			}
		}
	} else {
		dynamicOptionsSvc = dynamicoptions.New(optionsLookup)
	}

	f := facade.New(metadataResolver, dynamicOptionsSvc, demoConnections)

	secret := cfg.JWTSigningSecret
	if secret == "" {
		secret = "dev-only-insecure-secret"
		log.Warn().Msg("JWT_SIGNING_SECRET not set; using an insecure development default")
	}
	guard := rbac.New(secret)

	srv := httpapi.NewServer(f, connectors, guard, auditSink, log)
	srv.CORSOrigins = cfg.CORSAllowedOrigins
	srv.ReadyCheck = readyCheck
	if cfg.GitHubOAuthClientID != "" && cfg.GitHubOAuthClientSecret != "" {
		srv.OAuth = oauthflow.NewExchanger(map[string]*oauth2.Config{
			"github": {
				ClientID:     cfg.GitHubOAuthClientID,
				ClientSecret: cfg.GitHubOAuthClientSecret,
				Endpoint:     githuboauth.Endpoint,
				Scopes:       []string{"repo"},
				RedirectURL:  cfg.PublicURL() + "/api/oauth/callback/github",
			},
		}, nil)
	} else {
		log.Info().Msg("GITHUB_OAUTH_CLIENT_ID/SECRET not set; /api/oauth routes report 501")
	}
	return srv
}
