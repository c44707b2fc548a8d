package asana

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

func TestAuthHeadersMissingToken(t *testing.T) {
	creds := credentials.New(map[string]string{}, nil)
	if headers := AuthHeaders(creds); headers != nil {
		t.Fatalf("expected nil headers, got %+v", headers)
	}
}

func TestRegisterHandlersCreateTask(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		w.Write([]byte(`{"data":{"gid":"1"}}`))
	}))
	defer srv.Close()

	creds := credentials.New(map[string]string{credentials.FieldAccessToken: "tok"}, nil)
	p := pipeline.New(pipeline.Config{
		BaseURL:        srv.URL,
		Governor:       ratelimit.New(zerolog.Nop()),
		RateLimitRules: RateLimitRules,
		Identity:       ratelimit.Identity{ConnectorID: "asana"},
		Credentials:    creds,
		AuthHeaders:    AuthHeaders,
	})
	reg := registry.New()
	RegisterHandlers(p, reg)

	resp := reg.Execute(context.Background(), "create_task", map[string]any{
		"name": "Ship it", "projectId": "P1", "notes": "before Friday",
	})
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	if gotPath != "/tasks" || gotMethod != http.MethodPost {
		t.Fatalf("unexpected request: %s %s", gotMethod, gotPath)
	}
}

func TestRegisterHandlersGetTaskAndListProjects(t *testing.T) {
	var gotPaths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPaths = append(gotPaths, r.URL.RequestURI())
		w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	creds := credentials.New(map[string]string{credentials.FieldAccessToken: "tok"}, nil)
	p := pipeline.New(pipeline.Config{
		BaseURL:        srv.URL,
		Governor:       ratelimit.New(zerolog.Nop()),
		RateLimitRules: RateLimitRules,
		Identity:       ratelimit.Identity{ConnectorID: "asana"},
		Credentials:    creds,
		AuthHeaders:    AuthHeaders,
	})
	reg := registry.New()
	RegisterHandlers(p, reg)

	reg.Execute(context.Background(), "get_task", map[string]any{"taskId": "T1"})
	reg.Execute(context.Background(), "list_projects", map[string]any{"workspaceId": "W1"})

	if len(gotPaths) != 2 || gotPaths[0] != "/tasks/T1" || gotPaths[1] != "/projects?workspace=W1" {
		t.Fatalf("unexpected paths: %+v", gotPaths)
	}
}
