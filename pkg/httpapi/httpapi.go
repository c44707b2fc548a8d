// Package httpapi implements the inbound HTTP surface (spec.md §6.4) the
// execution core exposes: the routes a workflow engine or UI calls into to
// trigger metadata resolution, dynamic-option lookups, and (thinly, since
// credential storage and the OAuth authorization-code dance are explicitly
// out of this core's scope per spec.md §1) OAuth and execution-history
// pass-throughs. Routing follows the teacher pack's chi conventions
// (erauner12-toolbridge-api, wisbric-nightowl): go-chi/chi for routing,
// go-chi/cors for CORS, go-playground/validator for DTO validation.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/resilientcore/execbridge/pkg/audit"
	"github.com/resilientcore/execbridge/pkg/connector"
	"github.com/resilientcore/execbridge/pkg/facade"
	"github.com/resilientcore/execbridge/pkg/rbac"
)

// Server holds every collaborator the inbound routes dispatch to.
type Server struct {
	Facade      *facade.Facade
	Connectors  *connector.Registry
	Guard       *rbac.Guard
	Audit       *audit.MemorySink
	Log         zerolog.Logger
	CORSOrigins []string
	OAuth       OAuthExchanger
	Executions  ExecutionHistory
	// ReadyCheck, if set, gates /api/ready (e.g. a Redis ping for the
	// dynamic-options cache). Nil means always ready.
	ReadyCheck func() error
}

// NewServer builds a Server with permissive CORS; callers narrow
// CORSOrigins before calling Router() if needed.
func NewServer(f *facade.Facade, connectors *connector.Registry, guard *rbac.Guard, auditSink *audit.MemorySink, log zerolog.Logger) *Server {
	return &Server{
		Facade:      f,
		Connectors:  connectors,
		Guard:       guard,
		Audit:       auditSink,
		Log:         log,
		CORSOrigins: []string{"*"},
	}
}

// Router assembles the full chi.Mux: the health endpoints, the public
// connector catalog and the OAuth callback are unauthenticated; every
// other route runs behind the RBAC guard's Authenticator middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Organization-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/live", s.handleLive)
	r.Get("/api/ready", s.handleReady)
	r.Get("/api/queue/heartbeat", s.handleQueueHeartbeat)
	r.Handle("/api/metrics", promhttp.Handler())

	// Public (no tier/scope detail) connector catalog.
	r.Get("/metadata/v1/connectors", s.handlePublicConnectorCatalog)

	r.Group(func(r chi.Router) {
		r.Use(s.Guard.Authenticator())

		r.Get("/api/registry/capabilities", s.handleCapabilities)
		r.With(rbac.RequirePermissionMiddleware(rbac.PermMetadataRead)).Post("/metadata/resolve", s.handleMetadataResolve)
		r.With(rbac.RequirePermissionMiddleware(rbac.PermMetadataRead)).Post("/schemas/{app}/{operation}/options/{parameter}", s.handleDynamicOptions)
		r.With(rbac.RequirePermissionMiddleware(rbac.PermMetadataRead)).Get("/api/sheets/{spreadsheetId:^[A-Za-z0-9_-]+$}/metadata", s.handleSheetsMetadata)

		r.With(rbac.RequirePermissionMiddleware(rbac.PermWorkflowView)).Get("/api/executions", s.handleListExecutions)
		r.With(rbac.RequirePermissionMiddleware(rbac.PermWorkflowView)).Get("/api/executions/{id}", s.handleGetExecution)
		r.With(rbac.RequirePermissionMiddleware(rbac.PermWorkflowView)).Get("/api/executions/{id}/timeline", s.handleExecutionTimeline)
		r.With(rbac.RequirePermissionMiddleware(rbac.PermWorkflowEdit)).Post("/api/executions/{id}/retry", s.handleRetryExecution)
		r.With(rbac.RequirePermissionMiddleware(rbac.PermWorkflowEdit)).Post("/api/executions/{id}/nodes/{nodeId}/retry", s.handleRetryExecutionNode)

		r.With(rbac.RequirePermissionMiddleware(rbac.PermWorkflowDeploy)).Post("/api/workflows/{workflowId}/publish", s.handlePublishWorkflow)
		r.With(rbac.RequirePermissionMiddleware(rbac.PermWorkflowView)).Get("/api/workflows/{workflowId}/diff/{environment}", s.handleWorkflowDiff)
		r.With(rbac.RequirePermissionMiddleware(rbac.PermWorkflowDeploy)).Post("/api/workflows/{workflowId}/rollback", s.handleWorkflowRollback)

		r.Post("/api/oauth/authorize/{provider}", s.handleOAuthAuthorize)
	})
	// The callback leg can't carry a bearer token (it's a vendor redirect),
	// so it stays outside the authenticated group; state verification is
	// the OAuthExchanger's responsibility.
	r.Get("/api/oauth/callback/{provider}", s.handleOAuthCallback)

	return r
}
