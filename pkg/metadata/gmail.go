package metadata

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"

	"github.com/resilientcore/execbridge/pkg/pipeline"
)

// GmailResolver implements spec.md §4.7's gmail resolver.
type GmailResolver struct{}

type gmailLabelsResponse struct {
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels"`
}

type gmailMessagesResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type gmailMessageResponse struct {
	Snippet string `json:"snippet"`
	Payload struct {
		Headers []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"headers"`
		Body struct {
			Data string `json:"data"`
		} `json:"body"`
	} `json:"payload"`
}

func (GmailResolver) Resolve(ctx context.Context, req ResolveRequest) (*Result, error) {
	if _, err := requireAccessToken(req.Credentials); err != nil {
		return nil, err
	}

	labelsResp := pipeline.MakeRequest[gmailLabelsResponse](ctx, req.Pipeline, http.MethodGet, "/users/me/labels", nil, nil)
	if !labelsResp.Success {
		return nil, mapAuthFailure(labelsResp.StatusCode, labelsResp.Error)
	}

	var labels []string
	for _, l := range labelsResp.Data.Labels {
		labels = append(labels, l.Name)
	}

	query := "/users/me/messages?maxResults=5"
	if q := req.Params["q"]; q != "" {
		query += "&q=" + url.QueryEscape(q)
	}
	listResp := pipeline.MakeRequest[gmailMessagesResponse](ctx, req.Pipeline, http.MethodGet, query, nil, nil)
	if !listResp.Success {
		return nil, mapAuthFailure(listResp.StatusCode, listResp.Error)
	}

	sample := map[string]any{}
	if len(listResp.Data.Messages) > 0 {
		msgID := listResp.Data.Messages[0].ID
		msgResp := pipeline.MakeRequest[gmailMessageResponse](ctx, req.Pipeline, http.MethodGet,
			fmt.Sprintf("/users/me/messages/%s?format=full", msgID), nil, nil)
		if !msgResp.Success {
			return nil, mapAuthFailure(msgResp.StatusCode, msgResp.Error)
		}

		header := func(name string) string {
			for _, h := range msgResp.Data.Payload.Headers {
				if h.Name == name {
					return h.Value
				}
			}
			return ""
		}

		body := ""
		if raw := msgResp.Data.Payload.Body.Data; raw != "" {
			if decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(raw); err == nil {
				body = string(decoded)
			}
		}

		sample = map[string]any{
			"From":    header("From"),
			"To":      header("To"),
			"Subject": header("Subject"),
			"Date":    header("Date"),
			"Snippet": msgResp.Data.Snippet,
			"Body":    body,
		}
	}

	columns := []string{"From", "To", "Subject", "Date", "Snippet", "Body"}
	return &Result{
		Metadata: WorkflowNodeMetadata{
			Columns:     columns,
			Headers:     columns,
			Sample:      sample,
			DerivedFrom: []string{"api:gmail"},
		},
		Extras: map[string]any{"labels": labels},
	}, nil
}
