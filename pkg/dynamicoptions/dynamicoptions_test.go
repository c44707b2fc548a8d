package dynamicoptions

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/resilientcore/execbridge/pkg/credentials"
)

type staticRegistry struct {
	cfg     Config
	handler Handler
}

func (r staticRegistry) Lookup(connectorID, operationType, operationID, parameterPath string) (Config, Handler, bool) {
	if parameterPath != r.cfg.ParameterPath {
		return Config{}, nil, false
	}
	return r.cfg, r.handler, true
}

// S5 — Dynamic options dependency check and caching.
func TestGetDynamicOptionsDependencyCheckAndCache(t *testing.T) {
	var calls int32
	reg := staticRegistry{
		cfg: Config{
			HandlerID:     "listIssues",
			ParameterPath: "projectId",
			DependsOn:     []string{"projectId"},
			CacheTTLMs:    60000,
		},
		handler: func(ctx context.Context, creds *credentials.Bag, handlerID string, reqCtx map[string]any) (*Result, error) {
			atomic.AddInt32(&calls, 1)
			return &Result{Success: true, Options: []Option{{Value: "1", Label: "Issue 1"}}}, nil
		},
	}
	svc := New(reg)
	creds := credentials.New(map[string]string{}, nil)

	// Call 1: missing dependency.
	_, err := svc.GetDynamicOptions(context.Background(), Request{
		ConnectorID:   "github",
		ConnectionID:  "conn1",
		Credentials:   creds,
		ParameterPath: "projectId",
		Context:       map[string]any{"dependencies": map[string]any{}},
	})
	if err == nil {
		t.Fatal("expected an error when projectId dependency is missing")
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected no adapter invocation on dependency failure, got %d calls", calls)
	}

	// Call 2: with projectId present, hits the adapter.
	result, err := svc.GetDynamicOptions(context.Background(), Request{
		ConnectorID:   "github",
		ConnectionID:  "conn1",
		Credentials:   creds,
		ParameterPath: "projectId",
		Context:       map[string]any{"dependencies": map[string]any{"projectId": "P1"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Cached {
		t.Fatal("first call should not be cached")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected 1 adapter call, got %d", calls)
	}

	// Call 3: same key within cacheTtlMs, returns cached result.
	result2, err := svc.GetDynamicOptions(context.Background(), Request{
		ConnectorID:   "github",
		ConnectionID:  "conn1",
		Credentials:   creds,
		ParameterPath: "projectId",
		Context:       map[string]any{"dependencies": map[string]any{"projectId": "P1"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result2.Cached {
		t.Fatal("expected third call to be served from cache")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected adapter to still have been called only once, got %d", calls)
	}
}

func TestGetDynamicOptionsUnknownConfig(t *testing.T) {
	svc := New(staticRegistry{cfg: Config{ParameterPath: "other"}})
	_, err := svc.GetDynamicOptions(context.Background(), Request{ParameterPath: "projectId"})
	if err == nil {
		t.Fatal("expected an error for an unregistered parameter path")
	}
}

func TestGetDynamicOptionsForceRefreshBypassesCache(t *testing.T) {
	var calls int32
	reg := staticRegistry{
		cfg: Config{HandlerID: "listIssues", ParameterPath: "projectId", CacheTTLMs: 60000},
		handler: func(ctx context.Context, creds *credentials.Bag, handlerID string, reqCtx map[string]any) (*Result, error) {
			n := atomic.AddInt32(&calls, 1)
			return &Result{Success: true, Options: []Option{{Value: "x", Label: "x"}}, TotalCount: int(n)}, nil
		},
	}
	svc := New(reg)
	creds := credentials.New(map[string]string{}, nil)
	req := Request{ConnectorID: "github", ConnectionID: "conn1", Credentials: creds, ParameterPath: "projectId"}

	first, err := svc.GetDynamicOptions(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req.ForceRefresh = true
	second, err := svc.GetDynamicOptions(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.TotalCount == second.TotalCount {
		t.Fatal("expected forceRefresh to bypass the cache and re-invoke the adapter")
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 adapter calls, got %d", calls)
	}
}

func TestCacheKeyStableUnderKeyOrdering(t *testing.T) {
	a := cacheKey("github", "conn1", "listIssues", map[string]any{
		"dependencies": map[string]any{"projectId": "P1", "milestone": "M1"},
	})
	b := cacheKey("github", "conn1", "listIssues", map[string]any{
		"dependencies": map[string]any{"milestone": "M1", "projectId": "P1"},
	})
	if a != b {
		t.Fatalf("expected cache key to be stable under map key ordering, got %q vs %q", a, b)
	}
}
