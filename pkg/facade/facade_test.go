package facade

import (
	"context"
	"testing"

	"github.com/resilientcore/execbridge/pkg/credentials"
	"github.com/resilientcore/execbridge/pkg/dynamicoptions"
	"github.com/resilientcore/execbridge/pkg/envelope"
	"github.com/resilientcore/execbridge/pkg/metadata"
	"github.com/resilientcore/execbridge/pkg/registry"
)

type staticOptionsRegistry struct {
	cfg     dynamicoptions.Config
	handler dynamicoptions.Handler
}

func (r staticOptionsRegistry) Lookup(connectorID, operationType, operationID, parameterPath string) (dynamicoptions.Config, dynamicoptions.Handler, bool) {
	if parameterPath != r.cfg.ParameterPath {
		return dynamicoptions.Config{}, nil, false
	}
	return r.cfg, r.handler, true
}

func newTestFacade() (*Facade, *Connection) {
	handlers := registry.New()
	handlers.RegisterHandler("ping", func(ctx context.Context, params map[string]any) *envelope.Raw {
		return envelope.Ok[any](map[string]any{"pong": true}, 200, nil)
	})

	conn := &Connection{
		ConnectorID:  "github",
		ConnectionID: "conn-1",
		Credentials:  credentials.New(map[string]string{credentials.FieldAccessToken: "tok"}, nil),
		Handlers:     handlers,
	}

	optionsRegistry := staticOptionsRegistry{
		cfg: dynamicoptions.Config{HandlerID: "listRepos", ParameterPath: "repo"},
		handler: func(ctx context.Context, creds *credentials.Bag, handlerID string, reqCtx map[string]any) (*dynamicoptions.Result, error) {
			return &dynamicoptions.Result{Success: true, Options: []dynamicoptions.Option{{Value: "1", Label: "repo-1"}}}, nil
		},
	}

	f := New(metadata.NewResolver(), dynamicoptions.New(optionsRegistry), map[string]*Connection{"conn-1": conn})
	return f, conn
}

func TestFacadeExecuteDispatchesToHandlerRegistry(t *testing.T) {
	f, _ := newTestFacade()
	resp := f.Execute(context.Background(), "conn-1", "ping", nil)
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
}

func TestFacadeExecuteUnknownConnection(t *testing.T) {
	f, _ := newTestFacade()
	resp := f.Execute(context.Background(), "missing-conn", "ping", nil)
	if resp.Success {
		t.Fatal("expected failure for an unknown connectionId")
	}
}

func TestFacadeGetDynamicOptions(t *testing.T) {
	f, _ := newTestFacade()
	result, err := f.GetDynamicOptions(context.Background(), "conn-1", "action", "op", "repo", nil, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Options) != 1 || result.Options[0].Value != "1" {
		t.Fatalf("unexpected options: %+v", result.Options)
	}
}

func TestFacadeUpdateCredentialsMerges(t *testing.T) {
	f, conn := newTestFacade()
	if err := f.UpdateCredentials("conn-1", map[string]string{"refreshToken": "r1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := conn.Credentials.Get("refreshToken"); !ok || v != "r1" {
		t.Fatalf("expected refreshToken to be merged, got %q (ok=%v)", v, ok)
	}
}
