// Package metadata implements the Metadata Resolver (C8 in spec.md §4.7):
// connector-keyed introspection that calls vendor discovery endpoints and
// returns a normalized {columns, sample, schema} map.
package metadata

import (
	"context"
	"strings"

	"github.com/resilientcore/execbridge/pkg/credentials"
	"github.com/resilientcore/execbridge/pkg/errs"
	"github.com/resilientcore/execbridge/pkg/pipeline"
)

// WorkflowNodeMetadata is the generic table-like schema descriptor
// returned by C8 (spec.md §3).
type WorkflowNodeMetadata struct {
	Columns     []string               `json:"columns"`
	Headers     []string               `json:"headers"`
	Sample      map[string]any         `json:"sample,omitempty"`
	Schema      map[string]FieldSchema `json:"schema,omitempty"`
	DerivedFrom []string               `json:"derivedFrom"`
}

// FieldSchema describes one vendor field's shape, a union of every field
// the concrete resolvers below populate.
type FieldSchema struct {
	Type        string `json:"type,omitempty"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
	Updateable  bool   `json:"updateable,omitempty"`
	Creatable   bool   `json:"creatable,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Options     any    `json:"options,omitempty"`
}

// Result is what a connector resolver returns on success.
type Result struct {
	Metadata WorkflowNodeMetadata `json:"metadata"`
	Extras   map[string]any       `json:"extras,omitempty"`
}

// ResolveRequest is what the facade hands to a connector resolver: a
// pipeline bound to the caller's connection, the credential bag, and
// free-form params (e.g. spreadsheetId, sheetName).
type ResolveRequest struct {
	Pipeline    *pipeline.Pipeline
	Credentials *credentials.Bag
	Params      map[string]string
	Options     map[string]any
}

// ConnectorResolver is implemented by each per-connector resolver
// (spec.md §4.7: "google-sheets", "gmail", "salesforce", "hubspot",
// "airtable").
type ConnectorResolver interface {
	Resolve(ctx context.Context, req ResolveRequest) (*Result, error)
}

// Resolver dispatches to connector resolvers by normalized connector id.
type Resolver struct {
	aliases   map[string]string
	resolvers map[string]ConnectorResolver
}

// NewResolver builds a Resolver preloaded with the alias table from
// spec.md §4.7 ("sheets -> google-sheets", "gmail-enhanced -> gmail").
func NewResolver() *Resolver {
	return &Resolver{
		aliases: map[string]string{
			"sheets":         "google-sheets",
			"gmail-enhanced": "gmail",
		},
		resolvers: make(map[string]ConnectorResolver),
	}
}

// Register binds a ConnectorResolver to its canonical connector id.
func (r *Resolver) Register(connectorID string, cr ConnectorResolver) {
	r.resolvers[strings.ToLower(connectorID)] = cr
}

// normalize applies the alias table (spec.md §4.7 step "Connector id is
// normalized via an alias table").
func (r *Resolver) normalize(connectorID string) string {
	id := strings.ToLower(connectorID)
	if canonical, ok := r.aliases[id]; ok {
		return canonical
	}
	return id
}

// Resolve implements spec.md §4.7's public resolve(connectorId, {...}) ->
// MetadataResolutionResult entry point.
func (r *Resolver) Resolve(ctx context.Context, connectorID string, req ResolveRequest) (*Result, error) {
	canonical := r.normalize(connectorID)
	cr, ok := r.resolvers[canonical]
	if !ok {
		return nil, errs.New(errs.KindValidation, 404, "no metadata resolver registered for connector %q", canonical)
	}
	return cr.Resolve(ctx, req)
}

// requireAccessToken implements spec.md §4.7 step 1: "Pulls accessToken
// (or vendor equivalent) from credentials; 400 if missing."
func requireAccessToken(creds *credentials.Bag) (string, error) {
	token, ok := creds.Get(credentials.FieldAccessToken)
	if !ok || token == "" {
		return "", errs.New(errs.KindValidation, 400, "credential missing accessToken")
	}
	return token, nil
}

// mapAuthFailure implements spec.md §4.7 step 3: "Maps status 401/403 ->
// {success:false, error:'… authentication failed', status}."
func mapAuthFailure(statusCode int, message string) error {
	if statusCode == 401 || statusCode == 403 {
		return errs.New(errs.KindAuth, statusCode, "vendor authentication failed: %s", message)
	}
	return errs.New(errs.KindUnknown, statusCode, "%s", message)
}
