// Package pipeline implements the Request Pipeline (C5 in spec.md §4.1):
// it composes the allowlist gate, token refresh manager, and rate-limit
// governor around an outbound HTTP call and produces the uniform
// envelope.APIResponse envelope. Pagination combinators live alongside it.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/resilientcore/execbridge/pkg/allowlist"
	"github.com/resilientcore/execbridge/pkg/credentials"
	"github.com/resilientcore/execbridge/pkg/envelope"
	"github.com/resilientcore/execbridge/pkg/errs"
	"github.com/resilientcore/execbridge/pkg/ratelimit"
	"github.com/resilientcore/execbridge/pkg/tokenrefresh"
)

// FormBody marks a body that should be URL-encoded with
// application/x-www-form-urlencoded, mirroring the teacher-adjacent
// URLSearchParams case in spec.md §4.1 step 6.
type FormBody url.Values

// RawBody carries a pre-serialized body (e.g. a multipart payload) whose
// Content-Type must not be overridden by the pipeline's JSON default
// (spec.md §4.1 step 6: "boundary is set by the transport").
type RawBody struct {
	ContentType string
	Data        []byte
}

// ResponseContext is handed to each registered response middleware in
// registration order, after the built-in rate-limit feedback middleware
// has already run (spec.md §4.1 step 7).
type ResponseContext struct {
	StatusCode     int
	Headers        map[string]string
	ConnectorID    string
	ConnectionID   string
	OrganizationID string
	RateLimits     *envelope.RateLimitInfo
}

// ResponseMiddleware observes a completed response. Middlewares cannot
// mutate the outcome; they exist for side effects (metrics, audit, logs).
type ResponseMiddleware func(*ResponseContext)

// Config wires one Pipeline instance to its connector/connection context
// and cross-cutting collaborators.
type Config struct {
	BaseURL        string
	UserAgent      string
	HTTPClient     *http.Client
	Allowlist      allowlist.Policy
	AuditSink      allowlist.Sink
	Governor       *ratelimit.Governor
	RateLimitRules ratelimit.Rules
	Identity       ratelimit.Identity
	TokenRefresh   *tokenrefresh.Manager
	CredentialKey  string
	Credentials    *credentials.Bag
	AuthHeaders    func(*credentials.Bag) map[string]string
	Middlewares    []ResponseMiddleware
	Logger         zerolog.Logger
}

// Pipeline is one connector/connection's bound request pipeline.
type Pipeline struct {
	cfg Config
}

func New(cfg Config) *Pipeline {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "execbridge/1.0"
	}
	return &Pipeline{cfg: cfg}
}

// Request implements spec.md §4.1's untyped request(method, endpoint, body,
// extraHeaders) -> APIResponse entry point.
func (p *Pipeline) Request(ctx context.Context, method, endpoint string, body any, extraHeaders map[string]string) *envelope.Raw {
	return p.do(ctx, method, endpoint, body, extraHeaders)
}

// MakeRequest is the typed variant: it runs Request and, on success,
// re-decodes Data into T. Declared as a free function because Go methods
// cannot carry their own type parameters.
func MakeRequest[T any](ctx context.Context, p *Pipeline, method, endpoint string, body any, extraHeaders map[string]string) *envelope.APIResponse[T] {
	raw := p.do(ctx, method, endpoint, body, extraHeaders)

	typed := &envelope.APIResponse[T]{
		Success:    raw.Success,
		Error:      raw.Error,
		StatusCode: raw.StatusCode,
		Headers:    raw.Headers,
		Warnings:   raw.Warnings,
	}
	if !raw.Success || raw.Data == nil {
		return typed
	}

	var out T
	if s, ok := raw.Data.(string); ok {
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			typed.Success = false
			typed.Error = fmt.Sprintf("decoding response into target type: %v", err)
			return typed
		}
	} else {
		b, err := json.Marshal(raw.Data)
		if err != nil {
			typed.Success = false
			typed.Error = fmt.Sprintf("re-encoding response data: %v", err)
			return typed
		}
		if err := json.Unmarshal(b, &out); err != nil {
			typed.Success = false
			typed.Error = fmt.Sprintf("decoding response into target type: %v", err)
			return typed
		}
	}
	typed.Data = out
	return typed
}

// do implements spec.md §4.1's ten-step contract.
func (p *Pipeline) do(ctx context.Context, method, endpoint string, body any, extraHeaders map[string]string) *envelope.Raw {
	resolved := joinURL(p.cfg.BaseURL, endpoint)

	parsed, err := url.Parse(resolved)
	if err != nil {
		return envelope.Fail[any](fmt.Sprintf("invalid URL %q: %v", resolved, err), 0)
	}

	if !allowlist.Admit(p.cfg.Allowlist, parsed.Hostname()) {
		if p.cfg.AuditSink != nil {
			p.cfg.AuditSink.RecordDenial(allowlist.AuditRecord{
				AttemptedHost:  parsed.Hostname(),
				AttemptedURL:   resolved,
				Reason:         "host_not_allowlisted",
				OrganizationID: p.cfg.Identity.OrganizationID,
				ConnectionID:   p.cfg.Identity.ConnectionID,
				Allowlist:      p.cfg.Allowlist,
			})
		}
		blocked := errs.New(errs.KindNetworkBlock, 0, "host not allowlisted: %s", parsed.Hostname())
		return envelope.Fail[any](blocked.Error(), 0)
	}

	if p.cfg.TokenRefresh != nil && p.cfg.Credentials != nil {
		if err := p.cfg.TokenRefresh.EnsureFresh(ctx, p.cfg.CredentialKey, p.cfg.Credentials); err != nil {
			return envelope.Fail[any](errs.GetErrorMessage(err), 401)
		}
	}

	release, err := p.cfg.Governor.Acquire(ctx, p.cfg.Identity, p.cfg.RateLimitRules)
	if err != nil {
		if ctx.Err() != nil {
			return envelope.FailTransport[any]("canceled")
		}
		return envelope.FailTransport[any](errs.GetErrorMessage(err))
	}
	defer release.Release()

	data, contentType, err := serializeBody(body)
	if err != nil {
		return envelope.Fail[any](fmt.Sprintf("serializing request body: %v", err), 0)
	}

	var reqBody io.Reader
	if len(data) > 0 {
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, resolved, reqBody)
	if err != nil {
		return envelope.Fail[any](fmt.Sprintf("building request: %v", err), 0)
	}

	p.applyHeaders(req, contentType, extraHeaders)

	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return envelope.FailTransport[any]("canceled")
		}
		return envelope.FailTransport[any](errs.GetErrorMessage(err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope.FailTransport[any](fmt.Sprintf("reading response body: %v", err))
	}

	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[strings.ToLower(k)] = v[0]
		}
	}

	rateInfo := p.cfg.Governor.ObserveResponse(p.cfg.Identity, p.cfg.RateLimitRules, resp.StatusCode, headers)

	rc := &ResponseContext{
		StatusCode:     resp.StatusCode,
		Headers:        headers,
		ConnectorID:    p.cfg.Identity.ConnectorID,
		ConnectionID:   p.cfg.Identity.ConnectionID,
		OrganizationID: p.cfg.Identity.OrganizationID,
		RateLimits:     rateInfo,
	}
	for _, mw := range p.cfg.Middlewares {
		mw(rc)
	}

	parsedData := parseBody(respBody)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &envelope.Raw{
			Success:    false,
			Error:      fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			StatusCode: resp.StatusCode,
			Data:       parsedData,
			Headers:    headers,
		}
	}

	return &envelope.Raw{
		Success:    true,
		Data:       parsedData,
		StatusCode: resp.StatusCode,
		Headers:    headers,
	}
}

// applyHeaders composes headers in spec.md §4.1 step 5's precedence order:
// defaults, then auth headers, then the caller's extraHeaders, with the
// body-derived Content-Type (step 6) applied last unless the caller set
// one explicitly.
func (p *Pipeline) applyHeaders(req *http.Request, bodyContentType string, extraHeaders map[string]string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", p.cfg.UserAgent)

	if p.cfg.AuthHeaders != nil {
		for k, v := range p.cfg.AuthHeaders(p.cfg.Credentials) {
			req.Header.Set(k, v)
		}
	}

	explicitContentType := false
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
		if strings.EqualFold(k, "Content-Type") {
			explicitContentType = true
		}
	}

	if bodyContentType != "" && !explicitContentType {
		req.Header.Set("Content-Type", bodyContentType)
	}
}

// serializeBody implements spec.md §4.1 step 6.
func serializeBody(body any) ([]byte, string, error) {
	switch v := body.(type) {
	case nil:
		return nil, "", nil
	case string:
		return []byte(v), "", nil
	case []byte:
		return v, "", nil
	case FormBody:
		return []byte(url.Values(v).Encode()), "application/x-www-form-urlencoded", nil
	case *RawBody:
		return v.Data, v.ContentType, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return b, "application/json", nil
	}
}

// parseBody implements spec.md §4.1 step 8: try JSON, fall back to text.
func parseBody(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	return string(raw)
}

// joinURL implements spec.md §4.1 step 1.
func joinURL(baseURL, endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
}
