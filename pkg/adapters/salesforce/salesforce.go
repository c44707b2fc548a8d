// Package salesforce binds the Salesforce REST API onto the execution
// core. Unlike every other adapter here, Salesforce is multi-tenant at the
// host level: each org has its own instanceUrl, so operation paths are
// absolute (matching pkg/pipeline's "absolute endpoints bypass baseURL"
// join rule) rather than relative to a shared BaseURL.
package salesforce

import (
	"fmt"
	"net/http"

	"github.com/resilientcore/execbridge/pkg/adapters/adapterkit"
	"github.com/resilientcore/execbridge/pkg/credentials"
	"github.com/resilientcore/execbridge/pkg/pipeline"
	"github.com/resilientcore/execbridge/pkg/ratelimit"
	"github.com/resilientcore/execbridge/pkg/registry"
)

func AuthHeaders(creds *credentials.Bag) map[string]string {
	token, _ := creds.Get(credentials.FieldAccessToken)
	if token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

// RateLimitRules is conservative relative to Salesforce's per-org daily
// API call allotment, enforced here as a per-connection concurrency cap
// since the real budget is org-specific and provisioned out of band.
var RateLimitRules = ratelimit.Rules{
	Scope:            ratelimit.ScopeConnection,
	ConcurrencyLimit: 5,
	WindowSecs:       1,
	TokensPerWindow:  25,
}

func sobjectURL(instanceURL, version, object, suffix string) string {
	return fmt.Sprintf("%s/services/data/%s/sobjects/%s%s", instanceURL, version, object, suffix)
}

// Operations builds absolute URLs from the instanceURL and version it is
// given (version defaults to v59.0), so requests bypass the pipeline's
// BaseURL; the caller supplies instanceURL, typically from the org's
// instanceUrl credential.
func Operations(instanceURL, version string) map[string]adapterkit.Operation {
	if version == "" {
		version = "v59.0"
	}
	return map[string]adapterkit.Operation{
		"create_record": {
			Method: http.MethodPost,
			Path: func(params map[string]any) string {
				return sobjectURL(instanceURL, version, adapterkit.StringParam(params, "object"), "")
			},
			Body: func(params map[string]any) any { return params["fields"] },
		},
		"get_record": {
			Method: http.MethodGet,
			Path: func(params map[string]any) string {
				return sobjectURL(instanceURL, version, adapterkit.StringParam(params, "object"), "/"+adapterkit.StringParam(params, "id"))
			},
		},
		"update_record": {
			Method: http.MethodPatch,
			Path: func(params map[string]any) string {
				return sobjectURL(instanceURL, version, adapterkit.StringParam(params, "object"), "/"+adapterkit.StringParam(params, "id"))
			},
			Body: func(params map[string]any) any { return params["fields"] },
		},
	}
}

// RegisterHandlers binds Operations for one org's instanceUrl/version onto
// p and registers them into reg.
func RegisterHandlers(p *pipeline.Pipeline, reg *registry.Registry, instanceURL, version string) {
	reg.RegisterHandlers(adapterkit.Build(p, Operations(instanceURL, version)))
}
