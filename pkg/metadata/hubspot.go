package metadata

import (
	"context"
	"fmt"
	"net/http"

	"github.com/resilientcore/execbridge/pkg/errs"
	"github.com/resilientcore/execbridge/pkg/pipeline"
)

// HubSpotResolver implements spec.md §4.7's hubspot resolver.
type HubSpotResolver struct{}

type hubspotPropertiesResponse struct {
	Results []struct {
		Name        string `json:"name"`
		Label       string `json:"label"`
		Type        string `json:"type"`
		Description string `json:"description"`
	} `json:"results"`
}

func (HubSpotResolver) Resolve(ctx context.Context, req ResolveRequest) (*Result, error) {
	if _, err := requireAccessToken(req.Credentials); err != nil {
		return nil, err
	}

	objectType := req.Params["objectType"]
	if objectType == "" {
		return nil, errs.New(errs.KindValidation, 400, "missing required param: objectType")
	}

	resp := pipeline.MakeRequest[hubspotPropertiesResponse](ctx, req.Pipeline, http.MethodGet,
		fmt.Sprintf("/crm/v3/properties/%s", objectType), nil, nil)
	if !resp.Success {
		return nil, mapAuthFailure(resp.StatusCode, resp.Error)
	}

	var columns []string
	schema := make(map[string]FieldSchema, len(resp.Data.Results))
	for _, f := range resp.Data.Results {
		columns = append(columns, f.Name)
		schema[f.Name] = FieldSchema{
			Type:        f.Type,
			Label:       f.Label,
			Description: f.Description,
		}
	}

	return &Result{
		Metadata: WorkflowNodeMetadata{
			Columns:     columns,
			Headers:     columns,
			Schema:      schema,
			DerivedFrom: []string{"api:hubspot"},
		},
	}, nil
}
