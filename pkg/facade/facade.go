// Package facade implements the Execution Facade (C11 in spec.md §4.11):
// the thin public surface — execute, getDynamicOptions, resolveMetadata,
// updateCredentials — that glues the handler registry, metadata resolver,
// and dynamic-options service onto a caller's (connector, connection)
// context.
package facade

import (
	"context"

	"github.com/resilientcore/execbridge/pkg/credentials"
	"github.com/resilientcore/execbridge/pkg/dynamicoptions"
	"github.com/resilientcore/execbridge/pkg/envelope"
	"github.com/resilientcore/execbridge/pkg/errs"
	"github.com/resilientcore/execbridge/pkg/metadata"
	"github.com/resilientcore/execbridge/pkg/pipeline"
	"github.com/resilientcore/execbridge/pkg/registry"
)

// Connection is one caller-scoped binding of a connector instance: its
// credential bag, its handler registry, and the pipeline its handlers call
// through (spec.md §3: "A connection has exactly one connector and one
// credentials bag").
type Connection struct {
	ConnectorID  string
	ConnectionID string
	Credentials  *credentials.Bag
	Handlers     *registry.Registry
	Pipeline     *pipeline.Pipeline
}

// Facade is the per-caller entry point adapters and inbound routes use
// (spec.md §4.11's "minimal set of public entry points").
type Facade struct {
	connections      map[string]*Connection
	metadataResolver *metadata.Resolver
	dynamicOptions   *dynamicoptions.Service
}

// New builds a Facade bound to a metadata resolver and dynamic-options
// service shared process-wide, and the set of live connections the caller
// may address by connectionId.
func New(metadataResolver *metadata.Resolver, dynamicOptions *dynamicoptions.Service, connections map[string]*Connection) *Facade {
	if connections == nil {
		connections = make(map[string]*Connection)
	}
	return &Facade{connections: connections, metadataResolver: metadataResolver, dynamicOptions: dynamicOptions}
}

func (f *Facade) connection(connectionID string) (*Connection, error) {
	conn, ok := f.connections[connectionID]
	if !ok {
		return nil, errs.New(errs.KindValidation, 404, "unknown connectionId: %s", connectionID)
	}
	return conn, nil
}

// Execute implements spec.md §4.11's execute(operationId, params): dispatch
// to the connection's handler registry (C6).
func (f *Facade) Execute(ctx context.Context, connectionID, operationID string, params map[string]any) *envelope.Raw {
	conn, err := f.connection(connectionID)
	if err != nil {
		return envelope.Fail[any](errs.GetErrorMessage(err), 404)
	}
	return conn.Handlers.Execute(ctx, operationID, params)
}

// ResolveMetadata implements spec.md §4.11's resolver lookup: dispatch to
// C8 bound to the connection's pipeline and credentials.
func (f *Facade) ResolveMetadata(ctx context.Context, connectionID string, params map[string]string) (*metadata.Result, error) {
	conn, err := f.connection(connectionID)
	if err != nil {
		return nil, err
	}
	return f.metadataResolver.Resolve(ctx, conn.ConnectorID, metadata.ResolveRequest{
		Pipeline:    conn.Pipeline,
		Credentials: conn.Credentials,
		Params:      params,
	})
}

// GetDynamicOptions implements spec.md §4.11's getDynamicOptions(handlerId,
// context): dispatch to C9 bound to the connection's connector and
// credentials.
func (f *Facade) GetDynamicOptions(ctx context.Context, connectionID, operationType, operationID, parameterPath string, reqCtx map[string]any, cacheTTLOverrideMs int64, forceRefresh bool) (*dynamicoptions.Result, error) {
	conn, err := f.connection(connectionID)
	if err != nil {
		return nil, err
	}
	return f.dynamicOptions.GetDynamicOptions(ctx, dynamicoptions.Request{
		ConnectorID:    conn.ConnectorID,
		ConnectionID:   conn.ConnectionID,
		Credentials:    conn.Credentials,
		OperationType:  operationType,
		OperationID:    operationID,
		ParameterPath:  parameterPath,
		Context:        reqCtx,
		CacheTTLMsOvrd: cacheTTLOverrideMs,
		ForceRefresh:   forceRefresh,
	})
}

// UpdateCredentials implements spec.md §4.11's updateCredentials(partial):
// merges the given fields into the connection's credential bag, useful
// after an OAuth authorize/callback flow completes out-of-band.
func (f *Facade) UpdateCredentials(connectionID string, partial map[string]string) error {
	conn, err := f.connection(connectionID)
	if err != nil {
		return err
	}
	for k, v := range partial {
		conn.Credentials.Set(k, v)
	}
	return nil
}

// RegisterConnection adds or replaces a live connection, used by the
// composition root and by tests.
func (f *Facade) RegisterConnection(conn *Connection) {
	f.connections[conn.ConnectionID] = conn
}
