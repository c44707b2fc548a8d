package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/resilientcore/execbridge/pkg/credentials"
	"github.com/resilientcore/execbridge/pkg/pipeline"
	"github.com/resilientcore/execbridge/pkg/ratelimit"
	"github.com/resilientcore/execbridge/pkg/registry"
)

func TestAuthHeadersPrefersAccessTokenOverAPIKey(t *testing.T) {
	creds := credentials.New(map[string]string{credentials.FieldAccessToken: "tok-1", credentials.FieldAPIKey: "key-1"}, nil)
	headers := AuthHeaders(creds)
	if headers["Authorization"] != "Bearer tok-1" {
		t.Fatalf("unexpected headers: %+v", headers)
	}
}

func TestAuthHeadersFallsBackToAPIKey(t *testing.T) {
	creds := credentials.New(map[string]string{credentials.FieldAPIKey: "key-1"}, nil)
	headers := AuthHeaders(creds)
	if headers["Authorization"] != "Bearer key-1" {
		t.Fatalf("unexpected headers: %+v", headers)
	}
}

func TestRegisterHandlersCreateIssue(t *testing.T) {
	var gotPath, gotMethod, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod, gotAuth = r.URL.Path, r.Method, r.Header.Get("Authorization")
		w.Write([]byte(`{"number":1}`))
	}))
	defer srv.Close()

	creds := credentials.New(map[string]string{credentials.FieldAccessToken: "tok"}, nil)
	p := pipeline.New(pipeline.Config{
		BaseURL:        srv.URL,
		Governor:       ratelimit.New(zerolog.Nop()),
		RateLimitRules: RateLimitRules,
		Identity:       ratelimit.Identity{ConnectorID: "github"},
		Credentials:    creds,
		AuthHeaders:    AuthHeaders,
	})
	reg := registry.New()
	RegisterHandlers(p, reg)

	resp := reg.Execute(context.Background(), "create_issue", map[string]any{
		"owner": "octo", "repo": "hello", "title": "bug", "body": "it broke",
	})
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	if gotPath != "/repos/octo/hello/issues" || gotMethod != http.MethodPost {
		t.Fatalf("unexpected request: %s %s", gotMethod, gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
}
