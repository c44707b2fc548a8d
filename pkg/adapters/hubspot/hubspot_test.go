package hubspot

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

func TestAuthHeadersPresent(t *testing.T) {
	creds := credentials.New(map[string]string{credentials.FieldAccessToken: "tok"}, nil)
	headers := AuthHeaders(creds)
	if headers["Authorization"] != "Bearer tok" {
		t.Fatalf("unexpected headers: %+v", headers)
	}
}

func TestRegisterHandlersCreateContact(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		w.Write([]byte(`{"id":"1"}`))
	}))
	defer srv.Close()

	creds := credentials.New(map[string]string{credentials.FieldAccessToken: "tok"}, nil)
	p := pipeline.New(pipeline.Config{
		BaseURL:        srv.URL,
		Governor:       ratelimit.New(zerolog.Nop()),
		RateLimitRules: RateLimitRules,
		Identity:       ratelimit.Identity{ConnectorID: "hubspot"},
		Credentials:    creds,
		AuthHeaders:    AuthHeaders,
	})
	reg := registry.New()
	RegisterHandlers(p, reg)

	resp := reg.Execute(context.Background(), "create_contact", map[string]any{
		"email": "a@b.com", "firstName": "A", "lastName": "B",
	})
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	if gotPath != "/crm/v3/objects/contacts" || gotMethod != http.MethodPost {
		t.Fatalf("unexpected request: %s %s", gotMethod, gotPath)
	}
}

func TestRegisterHandlersGetContact(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"id":"42"}`))
	}))
	defer srv.Close()

	creds := credentials.New(map[string]string{credentials.FieldAccessToken: "tok"}, nil)
	p := pipeline.New(pipeline.Config{
		BaseURL:        srv.URL,
		Governor:       ratelimit.New(zerolog.Nop()),
		RateLimitRules: RateLimitRules,
		Identity:       ratelimit.Identity{ConnectorID: "hubspot"},
		Credentials:    creds,
		AuthHeaders:    AuthHeaders,
	})
	reg := registry.New()
	RegisterHandlers(p, reg)

	resp := reg.Execute(context.Background(), "get_contact", map[string]any{"contactId": "42"})
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	if gotPath != "/crm/v3/objects/contacts/42" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
}
