package metadata

import (
	"context"
	"fmt"
	"net/http"

	"github.com/resilientcore/execbridge/pkg/errs"
	"github.com/resilientcore/execbridge/pkg/pipeline"
)

// AirtableResolver implements spec.md §4.7's airtable resolver.
type AirtableResolver struct{}

type airtableField struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Options     any    `json:"options"`
}

type airtableTable struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Fields []airtableField `json:"fields"`
}

type airtableTablesResponse struct {
	Tables []airtableTable `json:"tables"`
}

func (AirtableResolver) Resolve(ctx context.Context, req ResolveRequest) (*Result, error) {
	if _, err := requireAccessToken(req.Credentials); err != nil {
		return nil, err
	}

	baseID := req.Params["baseId"]
	if baseID == "" {
		return nil, errs.New(errs.KindValidation, 400, "missing required param: baseId")
	}

	resp := pipeline.MakeRequest[airtableTablesResponse](ctx, req.Pipeline, http.MethodGet,
		fmt.Sprintf("/meta/bases/%s/tables", baseID), nil, nil)
	if !resp.Success {
		return nil, mapAuthFailure(resp.StatusCode, resp.Error)
	}
	if len(resp.Data.Tables) == 0 {
		return nil, errs.New(errs.KindValidation, 404, "base %q has no tables", baseID)
	}

	wantTableName := req.Params["tableName"]
	wantTableID := req.Params["tableId"]

	table := resp.Data.Tables[0]
	for _, tbl := range resp.Data.Tables {
		if tbl.Name == wantTableName || tbl.ID == wantTableID {
			table = tbl
			break
		}
	}

	var columns []string
	schema := make(map[string]FieldSchema, len(table.Fields))
	for _, f := range table.Fields {
		columns = append(columns, f.Name)
		schema[f.Name] = FieldSchema{
			Type:        f.Type,
			Description: f.Description,
			Options:     f.Options,
		}
	}

	var tableNames []string
	for _, tbl := range resp.Data.Tables {
		tableNames = append(tableNames, tbl.Name)
	}

	return &Result{
		Metadata: WorkflowNodeMetadata{
			Columns:     columns,
			Headers:     columns,
			Schema:      schema,
			DerivedFrom: []string{"api:airtable"},
		},
		Extras: map[string]any{
			"tables":    tableNames,
			"tableId":   table.ID,
			"tableName": table.Name,
		},
	}, nil
}
