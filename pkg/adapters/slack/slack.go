// Package slack binds Slack's Web API onto the execution core using the
// same declarative-operation pattern as pkg/adapters/github.
package slack

import (
	"net/http"

	"github.com/resilientcore/execbridge/pkg/adapters/adapterkit"
	"github.com/resilientcore/execbridge/pkg/credentials"
	"github.com/resilientcore/execbridge/pkg/pipeline"
	"github.com/resilientcore/execbridge/pkg/ratelimit"
	"github.com/resilientcore/execbridge/pkg/registry"
)

const BaseURL = "https://slack.com/api"

// AuthHeaders signs every call with the bot/user OAuth token Slack expects
// as a Bearer credential.
func AuthHeaders(creds *credentials.Bag) map[string]string {
	token, _ := creds.Get(credentials.FieldAccessToken)
	if token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

// RateLimitRules approximates Slack's Tier 3 web API budget (~50 req/min)
// for methods like chat.postMessage.
var RateLimitRules = ratelimit.Rules{
	Scope:            ratelimit.ScopeConnector,
	ConcurrencyLimit: 5,
	WindowSecs:       60,
	TokensPerWindow:  50,
}

var Operations = map[string]adapterkit.Operation{
	"post_message": {
		Method: http.MethodPost,
		Path:   func(params map[string]any) string { return "/chat.postMessage" },
		Body: func(params map[string]any) any {
			return map[string]any{
				"channel": adapterkit.StringParam(params, "channel"),
				"text":    adapterkit.StringParam(params, "text"),
			}
		},
	},
	"list_channels": {
		Method: http.MethodGet,
		Path:   func(params map[string]any) string { return "/conversations.list" },
	},
	"get_user_info": {
		Method: http.MethodGet,
		Path:   func(params map[string]any) string { return "/users.info?user=" + adapterkit.StringParam(params, "userId") },
	},
}

func RegisterHandlers(p *pipeline.Pipeline, reg *registry.Registry) {
	reg.RegisterHandlers(adapterkit.Build(p, Operations))
}
