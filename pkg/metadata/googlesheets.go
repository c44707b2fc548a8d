package metadata

import (
	"context"
	"fmt"
	"net/http"

	"github.com/resilientcore/execbridge/pkg/pipeline"
)

// GoogleSheetsResolver implements spec.md §4.7's google-sheets resolver.
// Its Pipeline's BaseURL is expected to be the Sheets v4 API root.
type GoogleSheetsResolver struct{}

type sheetsSpreadsheetResponse struct {
	Sheets []struct {
		Properties struct {
			Title string `json:"title"`
		} `json:"properties"`
	} `json:"sheets"`
}

type sheetsValuesResponse struct {
	Values [][]any `json:"values"`
}

func (GoogleSheetsResolver) Resolve(ctx context.Context, req ResolveRequest) (*Result, error) {
	if _, err := requireAccessToken(req.Credentials); err != nil {
		return nil, err
	}

	spreadsheetID := req.Params["spreadsheetId"]
	wantSheetName := req.Params["sheetName"]

	ssResp := pipeline.MakeRequest[sheetsSpreadsheetResponse](ctx, req.Pipeline, http.MethodGet,
		fmt.Sprintf("/spreadsheets/%s?fields=sheets.properties.title", spreadsheetID), nil, nil)
	if !ssResp.Success {
		return nil, mapAuthFailure(ssResp.StatusCode, ssResp.Error)
	}

	var tabs []string
	for _, s := range ssResp.Data.Sheets {
		tabs = append(tabs, s.Properties.Title)
	}
	if len(tabs) == 0 {
		return nil, fmt.Errorf("spreadsheet %q has no sheets", spreadsheetID)
	}

	sheetName := tabs[0]
	for _, t := range tabs {
		if t == wantSheetName {
			sheetName = t
			break
		}
	}

	headerResp := pipeline.MakeRequest[sheetsValuesResponse](ctx, req.Pipeline, http.MethodGet,
		fmt.Sprintf("/spreadsheets/%s/values/%s!1:1", spreadsheetID, sheetName), nil, nil)
	if !headerResp.Success {
		return nil, mapAuthFailure(headerResp.StatusCode, headerResp.Error)
	}

	sampleResp := pipeline.MakeRequest[sheetsValuesResponse](ctx, req.Pipeline, http.MethodGet,
		fmt.Sprintf("/spreadsheets/%s/values/%s!2:2", spreadsheetID, sheetName), nil, nil)
	if !sampleResp.Success {
		return nil, mapAuthFailure(sampleResp.StatusCode, sampleResp.Error)
	}

	var headers []string
	if len(headerResp.Data.Values) > 0 {
		for _, v := range headerResp.Data.Values[0] {
			headers = append(headers, fmt.Sprintf("%v", v))
		}
	}

	sample := map[string]any{}
	if len(sampleResp.Data.Values) > 0 {
		row := sampleResp.Data.Values[0]
		for i, h := range headers {
			if i < len(row) {
				sample[h] = row[i]
			}
		}
	}

	return &Result{
		Metadata: WorkflowNodeMetadata{
			Columns:     headers,
			Headers:     headers,
			Sample:      sample,
			DerivedFrom: []string{"api:google-sheets"},
		},
		Extras: map[string]any{
			"tabs":      tabs,
			"sheetName": sheetName,
		},
	}, nil
}
