// Package github binds GitHub's REST v3 API onto the execution core,
// replacing the teacher's hand-rolled GitHubAdapter (which tracked its own
// request-window counters and signed requests directly) with a thin
// declarative operation table layered on the shared pipeline: rate
// limiting, retries, and auth headers are now the pipeline's job (C1-C4),
// not the adapter's.
package github

import (
	"net/http"

	"github.com/resilientcore/execbridge/pkg/adapters/adapterkit"
	"github.com/resilientcore/execbridge/pkg/credentials"
	"github.com/resilientcore/execbridge/pkg/pipeline"
	"github.com/resilientcore/execbridge/pkg/ratelimit"
	"github.com/resilientcore/execbridge/pkg/registry"
)

// BaseURL is GitHub's REST API root.
const BaseURL = "https://api.github.com"

// AuthHeaders implements the pipeline.Config.AuthHeaders contract: a bare
// personal-access or OAuth token travels as a Bearer credential.
func AuthHeaders(creds *credentials.Bag) map[string]string {
	token, _ := creds.Get(credentials.FieldAccessToken)
	if token == "" {
		token, _ = creds.Get(credentials.FieldAPIKey)
	}
	if token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

// RateLimitRules mirrors GitHub's documented 5000 req/hour REST budget
// (the teacher's GitHubDefaultRestMaxRequests/RestWindowSecs constants),
// now expressed as the shared governor's per-connector token bucket
// instead of a hand-rolled sliding window.
var RateLimitRules = ratelimit.Rules{
	Scope:            ratelimit.ScopeConnector,
	ConcurrencyLimit: 10,
	WindowSecs:       3600,
	TokensPerWindow:  5000,
}

// Operations is the declarative operationId -> {method, path, body}
// binding table (spec.md §1: "a thin declarative binding ... layered on
// the pipeline").
var Operations = map[string]adapterkit.Operation{
	"get_repo": {
		Method: http.MethodGet,
		Path: func(params map[string]any) string {
			return "/repos/" + adapterkit.StringParam(params, "owner") + "/" + adapterkit.StringParam(params, "repo")
		},
	},
	"list_issues": {
		Method: http.MethodGet,
		Path: func(params map[string]any) string {
			return "/repos/" + adapterkit.StringParam(params, "owner") + "/" + adapterkit.StringParam(params, "repo") + "/issues"
		},
	},
	"get_issue": {
		Method: http.MethodGet,
		Path: func(params map[string]any) string {
			return "/repos/" + adapterkit.StringParam(params, "owner") + "/" + adapterkit.StringParam(params, "repo") +
				"/issues/" + adapterkit.StringParam(params, "number")
		},
	},
	"create_issue": {
		Method: http.MethodPost,
		Path: func(params map[string]any) string {
			return "/repos/" + adapterkit.StringParam(params, "owner") + "/" + adapterkit.StringParam(params, "repo") + "/issues"
		},
		Body: func(params map[string]any) any {
			payload := map[string]any{"title": adapterkit.StringParam(params, "title")}
			if desc := adapterkit.StringParam(params, "body"); desc != "" {
				payload["body"] = desc
			}
			return payload
		},
	},
	"add_comment": {
		Method: http.MethodPost,
		Path: func(params map[string]any) string {
			return "/repos/" + adapterkit.StringParam(params, "owner") + "/" + adapterkit.StringParam(params, "repo") +
				"/issues/" + adapterkit.StringParam(params, "number") + "/comments"
		},
		Body: func(params map[string]any) any {
			return map[string]any{"body": adapterkit.StringParam(params, "body")}
		},
	},
	"rate_limit": {
		Method: http.MethodGet,
		Path:   func(params map[string]any) string { return "/rate_limit" },
	},
}

// RegisterHandlers binds Operations onto p and registers them into reg,
// the step a composition root performs for each live GitHub connection.
func RegisterHandlers(p *pipeline.Pipeline, reg *registry.Registry) {
	reg.RegisterHandlers(adapterkit.Build(p, Operations))
}
