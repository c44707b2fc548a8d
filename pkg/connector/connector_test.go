package connector

import (
	"context"
	"testing"

	"github.com/resilientcore/execbridge/pkg/credentials"
	"github.com/resilientcore/execbridge/pkg/dynamicoptions"
)

func TestRegistryRegisterAndGetCaseInsensitive(t *testing.T) {
	r := NewRegistry()
	r.Register(&Entry{ID: "GitHub", DisplayName: "GitHub"})

	entry, ok := r.Get("github")
	if !ok {
		t.Fatal("expected lowercase lookup to find the entry")
	}
	if entry.DisplayName != "GitHub" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	r.Register(&Entry{ID: "a"})
	r.Register(&Entry{ID: "b"})
	if len(r.List()) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(r.List()))
	}
}

func TestDynamicOptionsLookupResolvesConfigAndHandler(t *testing.T) {
	r := NewRegistry()
	r.Register(&Entry{
		ID: "github",
		DynamicOptionConfigs: []dynamicoptions.Config{
			{HandlerID: "listRepos", ParameterPath: "repo"},
		},
	})

	lookup := DynamicOptionsLookup{
		Connectors: r,
		HandlerFor: func(connectorID, handlerID string) (dynamicoptions.Handler, bool) {
			if connectorID == "github" && handlerID == "listRepos" {
				return func(ctx context.Context, creds *credentials.Bag, handlerID string, reqCtx map[string]any) (*dynamicoptions.Result, error) {
					return &dynamicoptions.Result{Success: true}, nil
				}, true
			}
			return nil, false
		},
	}

	cfg, handler, ok := lookup.Lookup("github", "action", "op", "repo")
	if !ok {
		t.Fatal("expected a resolved config and handler")
	}
	if cfg.HandlerID != "listRepos" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if handler == nil {
		t.Fatal("expected a non-nil handler")
	}
}

func TestDynamicOptionsLookupMissingConnector(t *testing.T) {
	lookup := DynamicOptionsLookup{Connectors: NewRegistry(), HandlerFor: func(string, string) (dynamicoptions.Handler, bool) { return nil, false }}
	_, _, ok := lookup.Lookup("unknown", "action", "op", "repo")
	if ok {
		t.Fatal("expected lookup to fail for an unregistered connector")
	}
}
