// Package asana binds the Asana REST API onto the execution core.
package asana

import (
	"net/http"

	"github.com/resilientcore/execbridge/pkg/adapters/adapterkit"
	"github.com/resilientcore/execbridge/pkg/credentials"
	"github.com/resilientcore/execbridge/pkg/pipeline"
	"github.com/resilientcore/execbridge/pkg/ratelimit"
	"github.com/resilientcore/execbridge/pkg/registry"
)

const BaseURL = "https://app.asana.com/api/1.0"

func AuthHeaders(creds *credentials.Bag) map[string]string {
	token, _ := creds.Get(credentials.FieldAccessToken)
	if token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

// RateLimitRules mirrors Asana's standard-tier 150 requests/min budget.
var RateLimitRules = ratelimit.Rules{
	Scope:            ratelimit.ScopeConnector,
	ConcurrencyLimit: 10,
	WindowSecs:       60,
	TokensPerWindow:  150,
}

var Operations = map[string]adapterkit.Operation{
	"create_task": {
		Method: http.MethodPost,
		Path:   func(params map[string]any) string { return "/tasks" },
		Body: func(params map[string]any) any {
			data := map[string]any{"name": adapterkit.StringParam(params, "name")}
			if projectID := adapterkit.StringParam(params, "projectId"); projectID != "" {
				data["projects"] = []string{projectID}
			}
			if notes := adapterkit.StringParam(params, "notes"); notes != "" {
				data["notes"] = notes
			}
			return map[string]any{"data": data}
		},
	},
	"get_task": {
		Method: http.MethodGet,
		Path:   func(params map[string]any) string { return "/tasks/" + adapterkit.StringParam(params, "taskId") },
	},
	"list_projects": {
		Method: http.MethodGet,
		Path:   func(params map[string]any) string { return "/projects?workspace=" + adapterkit.StringParam(params, "workspaceId") },
	},
}

func RegisterHandlers(p *pipeline.Pipeline, reg *registry.Registry) {
	reg.RegisterHandlers(adapterkit.Build(p, Operations))
}
