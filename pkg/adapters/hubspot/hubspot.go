// Package hubspot binds HubSpot's CRM v3 API onto the execution core.
// Property introspection lives in pkg/metadata.HubSpotResolver, which this
// package does not register or call.
package hubspot

import (
	"net/http"

	"github.com/resilientcore/execbridge/pkg/adapters/adapterkit"
	"github.com/resilientcore/execbridge/pkg/credentials"
	"github.com/resilientcore/execbridge/pkg/pipeline"
	"github.com/resilientcore/execbridge/pkg/ratelimit"
	"github.com/resilientcore/execbridge/pkg/registry"
)

const BaseURL = "https://api.hubapi.com"

func AuthHeaders(creds *credentials.Bag) map[string]string {
	token, _ := creds.Get(credentials.FieldAccessToken)
	if token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

// RateLimitRules mirrors HubSpot's standard private-app burst budget
// (100 requests per 10-second window).
var RateLimitRules = ratelimit.Rules{
	Scope:            ratelimit.ScopeConnector,
	ConcurrencyLimit: 10,
	WindowSecs:       10,
	TokensPerWindow:  100,
}

var Operations = map[string]adapterkit.Operation{
	"create_contact": {
		Method: http.MethodPost,
		Path:   func(params map[string]any) string { return "/crm/v3/objects/contacts" },
		Body: func(params map[string]any) any {
			return map[string]any{"properties": map[string]any{
				"email":     adapterkit.StringParam(params, "email"),
				"firstname": adapterkit.StringParam(params, "firstName"),
				"lastname":  adapterkit.StringParam(params, "lastName"),
			}}
		},
	},
	"get_contact": {
		Method: http.MethodGet,
		Path:   func(params map[string]any) string { return "/crm/v3/objects/contacts/" + adapterkit.StringParam(params, "contactId") },
	},
	"list_deals": {
		Method: http.MethodGet,
		Path:   func(params map[string]any) string { return "/crm/v3/objects/deals" },
	},
}

func RegisterHandlers(p *pipeline.Pipeline, reg *registry.Registry) {
	reg.RegisterHandlers(adapterkit.Build(p, Operations))
}
