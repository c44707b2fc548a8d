package metadata

import (
	"context"
	"fmt"
	"net/http"

	"github.com/resilientcore/execbridge/pkg/errs"
	"github.com/resilientcore/execbridge/pkg/pipeline"
)

// SalesforceResolver implements spec.md §4.7's salesforce resolver. It
// dials the org's instanceUrl directly (an absolute endpoint, bypassing
// the pipeline's BaseURL) since every Salesforce org has its own host.
type SalesforceResolver struct{}

type salesforceDescribeResponse struct {
	Fields []struct {
		Name       string `json:"name"`
		Label      string `json:"label"`
		Type       string `json:"type"`
		Updateable bool   `json:"updateable"`
		Createable bool   `json:"createable"`
		Nillable   bool   `json:"nillable"`
	} `json:"fields"`
}

func (SalesforceResolver) Resolve(ctx context.Context, req ResolveRequest) (*Result, error) {
	if _, err := requireAccessToken(req.Credentials); err != nil {
		return nil, err
	}

	instanceURL, ok := req.Credentials.Get("instanceUrl")
	if !ok || instanceURL == "" {
		return nil, errs.New(errs.KindValidation, 400, "credential missing instanceUrl")
	}

	version := req.Params["version"]
	if version == "" {
		version = "v59.0"
	}
	object := req.Params["object"]
	if object == "" {
		return nil, errs.New(errs.KindValidation, 400, "missing required param: object")
	}

	endpoint := fmt.Sprintf("%s/services/data/%s/sobjects/%s/describe", instanceURL, version, object)
	resp := pipeline.MakeRequest[salesforceDescribeResponse](ctx, req.Pipeline, http.MethodGet, endpoint, nil, nil)
	if !resp.Success {
		return nil, mapAuthFailure(resp.StatusCode, resp.Error)
	}

	var columns []string
	schema := make(map[string]FieldSchema, len(resp.Data.Fields))
	for _, f := range resp.Data.Fields {
		columns = append(columns, f.Name)
		schema[f.Name] = FieldSchema{
			Type:       f.Type,
			Label:      f.Label,
			Updateable: f.Updateable,
			Creatable:  f.Createable,
			Required:   !f.Nillable,
		}
	}

	return &Result{
		Metadata: WorkflowNodeMetadata{
			Columns:     columns,
			Headers:     columns,
			Schema:      schema,
			DerivedFrom: []string{"api:salesforce"},
		},
	}, nil
}
