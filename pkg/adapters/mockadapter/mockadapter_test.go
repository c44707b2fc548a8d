package mockadapter

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/resilientcore/execbridge/pkg/credentials"
	"github.com/resilientcore/execbridge/pkg/pipeline"
	"github.com/resilientcore/execbridge/pkg/ratelimit"
	"github.com/resilientcore/execbridge/pkg/registry"
)

func newTestPipeline(cfg Config) (*pipeline.Pipeline, *RoundTripper) {
	client, rt := NewClient(cfg)
	p := pipeline.New(pipeline.Config{
		BaseURL:  "http://mock.invalid",
		Governor: ratelimit.New(zerolog.Nop()),
		RateLimitRules: ratelimit.Rules{
			Scope: ratelimit.ScopeConnector, ConcurrencyLimit: 10, WindowSecs: 60, TokensPerWindow: 1000,
		},
		Identity:    ratelimit.Identity{ConnectorID: "mock"},
		Credentials: credentials.New(nil, nil),
		HTTPClient:  client,
	})
	return p, rt
}

func TestRoundTripperSucceedsUntilThreshold(t *testing.T) {
	p, rt := newTestPipeline(Config{RequestsUntilRateLimit: 2})
	reg := registry.New()
	RegisterHandlers(p, reg)

	first := reg.Execute(context.Background(), "get_resource", map[string]any{"id": "1"})
	second := reg.Execute(context.Background(), "get_resource", map[string]any{"id": "2"})
	third := reg.Execute(context.Background(), "get_resource", map[string]any{"id": "3"})

	if !first.Success || !second.Success {
		t.Fatalf("expected first two requests to succeed: %+v %+v", first, second)
	}
	if third.Success || third.StatusCode != 429 {
		t.Fatalf("expected third request to be rate limited, got %+v", third)
	}
	if rt.Requests() != 3 {
		t.Fatalf("expected 3 observed requests, got %d", rt.Requests())
	}
}

func TestRoundTripperAlwaysRateLimit(t *testing.T) {
	p, _ := newTestPipeline(Config{AlwaysRateLimit: true})
	reg := registry.New()
	RegisterHandlers(p, reg)

	resp := reg.Execute(context.Background(), "get_resource", map[string]any{"id": "1"})
	if resp.Success || resp.StatusCode != 429 {
		t.Fatalf("expected rate limited response, got %+v", resp)
	}
}

func TestRoundTripperSpecialEndpointBody(t *testing.T) {
	p, _ := newTestPipeline(Config{})
	reg := registry.New()
	RegisterHandlers(p, reg)

	resp := reg.Execute(context.Background(), "get_special", nil)
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
}

func TestRoundTripperSimulatedTransportError(t *testing.T) {
	p, _ := newTestPipeline(Config{RandomErrorChance: 1.0})
	reg := registry.New()
	RegisterHandlers(p, reg)

	resp := reg.Execute(context.Background(), "get_resource", map[string]any{"id": "1"})
	if resp.Success {
		t.Fatalf("expected transport failure, got success: %+v", resp)
	}
}
