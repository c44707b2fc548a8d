// Package googlesheets binds the Google Sheets v4 API onto the execution
// core; its metadata introspection is handled by
// pkg/metadata.GoogleSheetsResolver rather than duplicated here.
package googlesheets

import (
	"net/http"

	"github.com/resilientcore/execbridge/pkg/adapters/adapterkit"
	"github.com/resilientcore/execbridge/pkg/credentials"
	"github.com/resilientcore/execbridge/pkg/pipeline"
	"github.com/resilientcore/execbridge/pkg/ratelimit"
	"github.com/resilientcore/execbridge/pkg/registry"
)

const BaseURL = "https://sheets.googleapis.com/v4"

func AuthHeaders(creds *credentials.Bag) map[string]string {
	token, _ := creds.Get(credentials.FieldAccessToken)
	if token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

// RateLimitRules mirrors Sheets API's default 300 requests/min per project
// quota.
var RateLimitRules = ratelimit.Rules{
	Scope:            ratelimit.ScopeConnector,
	ConcurrencyLimit: 8,
	WindowSecs:       60,
	TokensPerWindow:  300,
}

var Operations = map[string]adapterkit.Operation{
	"get_values": {
		Method: http.MethodGet,
		Path: func(params map[string]any) string {
			return "/spreadsheets/" + adapterkit.StringParam(params, "spreadsheetId") +
				"/values/" + adapterkit.StringParam(params, "range")
		},
	},
	"append_values": {
		Method: http.MethodPost,
		Path: func(params map[string]any) string {
			return "/spreadsheets/" + adapterkit.StringParam(params, "spreadsheetId") +
				"/values/" + adapterkit.StringParam(params, "range") + ":append?valueInputOption=USER_ENTERED"
		},
		Body: func(params map[string]any) any {
			return map[string]any{"values": params["values"]}
		},
	},
}

func RegisterHandlers(p *pipeline.Pipeline, reg *registry.Registry) {
	reg.RegisterHandlers(adapterkit.Build(p, Operations))
}
